package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/meshtastic2hass/internal/infrastructure/config"
	"github.com/nerrad567/meshtastic2hass/internal/infrastructure/logging"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_MissingConfigFile verifies run fails when the config file is absent.
func TestRun_MissingConfigFile(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, "/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("run() should fail with missing config file")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("error = %v, want loading config failure", err)
	}
}

// TestRun_InvalidConfig verifies validation errors stop startup.
func TestRun_InvalidConfig(t *testing.T) {
	path := writeConfig(t, `
radio:
  device: /dev/ttyUSB0
  host: meshtastic.local
`)

	err := run(context.Background(), path)
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("run() error = %v, want ErrInvalidConfig", err)
	}
}

// TestRun_BrokerUnreachable verifies a refused broker connection is fatal.
func TestRun_BrokerUnreachable(t *testing.T) {
	path := writeConfig(t, `
mqtt:
  broker:
    host: "127.0.0.1"
    port: 1
radio:
  host: "127.0.0.1"
logging:
  level: error
`)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	err := run(ctx, path)
	if err == nil {
		t.Fatal("run() should fail when the broker is unreachable")
	}
	if !strings.Contains(err.Error(), "connecting to MQTT") {
		t.Errorf("error = %v, want MQTT connect failure", err)
	}
}

func TestOverridesFromFlags(t *testing.T) {
	var flags flagValues
	cmd := newRootCommandWith(&flags)

	err := cmd.ParseFlags([]string{
		"--dev", "/dev/ttyACM0",
		"--mqtt-host", "broker.lan",
		"--mqtt-port", "8883",
		"--mqtt-user", "ha",
		"--mqtt-password", "secret",
		"--mqtt-topic-prefix", "mesh/json",
		"--node", "AB1",
		"--node", "CD2",
		"--log-level", "debug",
	})
	if err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	cfg := config.Config{Radio: config.RadioConfig{Host: "old.host"}}
	for _, override := range overridesFromFlags(cmd, &flags) {
		override(&cfg)
	}

	if cfg.Radio.Device != "/dev/ttyACM0" || cfg.Radio.Host != "" {
		t.Errorf("radio = %+v, want device only", cfg.Radio)
	}
	if cfg.MQTT.Broker.Host != "broker.lan" || cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("broker = %+v", cfg.MQTT.Broker)
	}
	if cfg.MQTT.Auth.Username != "ha" || cfg.MQTT.Auth.Password != "secret" {
		t.Errorf("auth = %s", cfg.MQTT.Auth)
	}
	if cfg.MQTT.TopicPrefix != "mesh/json" {
		t.Errorf("TopicPrefix = %q", cfg.MQTT.TopicPrefix)
	}
	if strings.Join(cfg.Bridge.Nodes, ",") != "AB1,CD2" {
		t.Errorf("Nodes = %v", cfg.Bridge.Nodes)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logging.Level)
	}
}

func TestOverridesFromFlags_UnsetFlagsLeaveConfig(t *testing.T) {
	var flags flagValues
	cmd := newRootCommandWith(&flags)

	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	if got := overridesFromFlags(cmd, &flags); len(got) != 0 {
		t.Errorf("got %d overrides, want none", len(got))
	}
}

func TestRootCommand_DevAndHostExclusive(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"--dev", "/dev/ttyUSB0", "--host", "meshtastic.local"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("Execute() should reject --dev together with --host")
	}
}

func TestRootCommand_RejectsPositionalArgs(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"extra"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("Execute() should reject positional arguments")
	}
}

func TestRootCommand_Version(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), version) {
		t.Errorf("version output = %q, want it to contain %q", out.String(), version)
	}
}

// fakeRunner blocks until its context ends, then returns onCancel, or
// returns failWith immediately when set.
type fakeRunner struct {
	failWith error
	onCancel error
	sawDone  atomic.Bool
}

func (r *fakeRunner) Run(ctx context.Context) error {
	if r.failWith != nil {
		return r.failWith
	}
	<-ctx.Done()
	r.sawDone.Store(true)
	return r.onCancel
}

type fakeLink struct {
	closed atomic.Int32
}

func (l *fakeLink) Close() error {
	l.closed.Add(1)
	return nil
}

func superviseAsync(ctx context.Context, r runner, link io.Closer) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- supervise(ctx, r, link, logging.Discard()) }()
	return errCh
}

func waitSupervise(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("supervise did not return")
		return nil
	}
}

// TestSupervise_BridgeFailureClosesRadio verifies a fatal bridge error is
// returned and tears down the radio link.
func TestSupervise_BridgeFailureClosesRadio(t *testing.T) {
	lost := errors.New("broker connection lost")
	link := &fakeLink{}

	err := waitSupervise(t, superviseAsync(context.Background(), &fakeRunner{failWith: lost}, link))

	if !errors.Is(err, lost) {
		t.Fatalf("supervise() error = %v, want %v", err, lost)
	}
	if got := link.closed.Load(); got != 1 {
		t.Errorf("radio closed %d times, want 1", got)
	}
}

// TestSupervise_SignalStopsCleanly verifies cancellation closes the radio
// and ends the bridge without an error.
func TestSupervise_SignalStopsCleanly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &fakeRunner{}
	link := &fakeLink{}

	errCh := superviseAsync(ctx, r, link)
	cancel()

	if err := waitSupervise(t, errCh); err != nil {
		t.Fatalf("supervise() error = %v, want nil", err)
	}
	if !r.sawDone.Load() {
		t.Error("bridge loop did not observe cancellation")
	}
	if got := link.closed.Load(); got != 1 {
		t.Errorf("radio closed %d times, want 1", got)
	}
}

// TestSupervise_ShutdownErrorsIgnored verifies an error caused by the
// radio closing during shutdown does not fail the process.
func TestSupervise_ShutdownErrorsIgnored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &fakeRunner{onCancel: errors.New("radio event stream closed")}

	errCh := superviseAsync(ctx, r, &fakeLink{})
	cancel()

	if err := waitSupervise(t, errCh); err != nil {
		t.Fatalf("supervise() error = %v, want nil", err)
	}
}
