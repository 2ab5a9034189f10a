package radio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os/user"
	"strconv"

	"go.bug.st/serial"
)

// Transport constants.
const (
	// DefaultPort is the radio's TCP stream API port.
	DefaultPort = 4403

	// serialBaudRate is the firmware's fixed console speed.
	serialBaudRate = 115200
)

// openTransport opens the byte stream to the radio: the serial device if
// cfg.Device is set, otherwise a TCP connection to cfg.Host.
func openTransport(ctx context.Context, cfg Config) (io.ReadWriteCloser, error) {
	if cfg.Device != "" {
		return openSerial(cfg.Device)
	}
	return dialTCP(ctx, cfg.Host)
}

func openSerial(device string) (io.ReadWriteCloser, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: serialBaudRate})
	if err != nil {
		if isPermissionError(err) {
			return nil, fmt.Errorf("%w: %s: %w\n%s", ErrPermissionDenied, device, err, permissionRemediation())
		}
		return nil, fmt.Errorf("%w: open %s: %w", ErrConnectionFailed, device, err)
	}
	return port, nil
}

func isPermissionError(err error) bool {
	var portErr *serial.PortError
	if errors.As(err, &portErr) && portErr.Code() == serial.PermissionDenied {
		return true
	}
	return errors.Is(err, fs.ErrPermission)
}

// permissionRemediation tells the operator how to gain access to serial
// devices on a typical Linux install.
func permissionRemediation() string {
	name := "$USER"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	return "Need to add yourself to the 'dialout' group by running:\n" +
		"    sudo usermod -a -G dialout " + name + "\n" +
		"After running that command, log out and re-login for it to take effect."
}

func dialTCP(ctx context.Context, host string) (io.ReadWriteCloser, error) {
	addr := radioAddress(host)

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, addr, err)
	}
	return conn, nil
}

// radioAddress appends DefaultPort when host carries no port.
func radioAddress(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(DefaultPort))
}
