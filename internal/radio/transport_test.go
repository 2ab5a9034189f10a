package radio

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRadioAddress(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"meshtastic.local", "meshtastic.local:4403"},
		{"192.168.1.40", "192.168.1.40:4403"},
		{"192.168.1.40:9000", "192.168.1.40:9000"},
		{"::1", "[::1]:4403"},
		{"[::1]:4403", "[::1]:4403"},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, radioAddress(tt.host))
		})
	}
}

func TestDialTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, err := dialTCP(ctx, ln.Addr().String())
	require.NoError(t, err)
	conn.Close()
}

func TestDialTCP_Refused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = dialTCP(ctx, addr)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestOpenSerial_Missing(t *testing.T) {
	_, err := openSerial("/dev/does-not-exist-m2h")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestIsPermissionError(t *testing.T) {
	assert.True(t, isPermissionError(fmt.Errorf("open: %w", fs.ErrPermission)))
	assert.False(t, isPermissionError(fs.ErrNotExist))
}

func TestPermissionRemediation(t *testing.T) {
	msg := permissionRemediation()
	assert.Contains(t, msg, "dialout")
	assert.Contains(t, msg, "sudo usermod -a -G dialout")
}
