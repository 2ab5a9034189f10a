// meshtastic2hass bridges a Meshtastic radio to Home Assistant over MQTT.
//
// Telemetry, positions and channel text received by the radio are published
// as Home Assistant MQTT discovery entities. Text written to a channel
// entity in Home Assistant is transmitted on that channel.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/meshtastic2hass/internal/bridge"
	"github.com/nerrad567/meshtastic2hass/internal/infrastructure/config"
	"github.com/nerrad567/meshtastic2hass/internal/infrastructure/logging"
	"github.com/nerrad567/meshtastic2hass/internal/infrastructure/mqtt"
	"github.com/nerrad567/meshtastic2hass/internal/radio"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// flagValues holds the raw command-line flags. Only flags the user set
// explicitly override the configuration file.
type flagValues struct {
	configPath   string
	device       string
	host         string
	mqttHost     string
	mqttPort     int
	mqttUser     string
	mqttPassword string
	topicPrefix  string
	nodes        []string
	logLevel     string
}

func main() {
	// Bare invocation prints usage and fails, so a misconfigured service
	// unit does not appear healthy.
	if len(os.Args) < 2 {
		_ = newRootCommand().Help()
		os.Exit(1)
	}

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCommand builds the meshtastic2hass command and its flags.
func newRootCommand() *cobra.Command {
	return newRootCommandWith(&flagValues{})
}

// newRootCommandWith binds the command's flags to the given values.
func newRootCommandWith(flags *flagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meshtastic2hass",
		Short: "Bridge a Meshtastic radio to Home Assistant over MQTT",
		Long: `meshtastic2hass connects to a Meshtastic radio over serial or TCP and to an
MQTT broker. Node telemetry and positions appear in Home Assistant as
discovered sensors and device trackers, and each radio channel appears as a
text entity that can both show and send messages.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return run(ctx, flags.configPath, overridesFromFlags(cmd, flags)...)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.configPath, "config", "c", "", "YAML configuration file")
	f.StringVar(&flags.device, "dev", "", "Serial device of the radio, e.g. /dev/ttyUSB0")
	f.StringVar(&flags.host, "host", "", "Hostname or IP of a network-connected radio")
	f.StringVar(&flags.mqttHost, "mqtt-host", "", "MQTT broker host")
	f.IntVar(&flags.mqttPort, "mqtt-port", config.DefaultMQTTPort, "MQTT broker port")
	f.StringVar(&flags.mqttUser, "mqtt-user", "", "MQTT username")
	f.StringVar(&flags.mqttPassword, "mqtt-password", "", "MQTT password")
	f.StringVar(&flags.topicPrefix, "mqtt-topic-prefix", config.DefaultTopicPrefix, "Prefix for state and command topics")
	f.StringArrayVar(&flags.nodes, "node", nil, "Short name of a node to bridge (repeatable; default all nodes)")
	f.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.MarkFlagsMutuallyExclusive("dev", "host")

	return cmd
}

// overridesFromFlags turns explicitly set flags into config overrides.
func overridesFromFlags(cmd *cobra.Command, flags *flagValues) []config.Override {
	changed := cmd.Flags().Changed
	var overrides []config.Override

	if changed("dev") {
		overrides = append(overrides, func(c *config.Config) {
			c.Radio.Device = flags.device
			c.Radio.Host = ""
		})
	}
	if changed("host") {
		overrides = append(overrides, func(c *config.Config) {
			c.Radio.Host = flags.host
			c.Radio.Device = ""
		})
	}
	if changed("mqtt-host") {
		overrides = append(overrides, func(c *config.Config) { c.MQTT.Broker.Host = flags.mqttHost })
	}
	if changed("mqtt-port") {
		overrides = append(overrides, func(c *config.Config) { c.MQTT.Broker.Port = flags.mqttPort })
	}
	if changed("mqtt-user") {
		overrides = append(overrides, func(c *config.Config) { c.MQTT.Auth.Username = flags.mqttUser })
	}
	if changed("mqtt-password") {
		overrides = append(overrides, func(c *config.Config) { c.MQTT.Auth.Password = flags.mqttPassword })
	}
	if changed("mqtt-topic-prefix") {
		overrides = append(overrides, func(c *config.Config) { c.MQTT.TopicPrefix = flags.topicPrefix })
	}
	if changed("node") {
		overrides = append(overrides, func(c *config.Config) { c.Bridge.Nodes = flags.nodes })
	}
	if changed("log-level") {
		overrides = append(overrides, func(c *config.Config) { c.Logging.Level = flags.logLevel })
	}

	return overrides
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: YAML file to load, or empty for defaults and environment
//   - overrides: Applied after the file and environment
//
// Returns:
//   - error: nil on signal-driven shutdown, otherwise the startup or fatal error
func run(ctx context.Context, configPath string, overrides ...config.Override) error {
	// Use default logger until config is loaded
	log := logging.Default()

	cfg, err := config.Load(configPath, overrides...)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("starting meshtastic2hass",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// Connect to the radio. Deferred after MQTT so it closes first.
	radioLog := log.Component("radio")
	radioCfg := radio.Config{
		Device:         cfg.Radio.Device,
		Host:           cfg.Radio.Host,
		ConnectTimeout: cfg.GetConnectTimeout(),
		Logger:         radioLog,
	}
	log.Info("connecting to radio", "target", radioCfg.Target())

	radioClient, err := radio.Connect(ctx, radioCfg)
	if err != nil {
		return fmt.Errorf("connecting to radio: %w", err)
	}
	defer func() {
		// Close is idempotent; supervise normally closed it already.
		if closeErr := radioClient.Close(); closeErr != nil {
			log.Error("error closing radio", "error", closeErr)
		}
		stats := radioClient.Stats()
		log.Info("radio link closed",
			"packets_rx", stats.PacketsRx,
			"packets_tx", stats.PacketsTx,
			"frames_dropped", stats.FramesDropped,
		)
	}()

	b, err := bridge.New(bridge.Options{
		TopicPrefix:       cfg.MQTT.TopicPrefix,
		Nodes:             cfg.Bridge.Nodes,
		KeepAliveInterval: cfg.GetKeepAliveInterval(),
		MQTTClient:        mqttClient,
		Radio:             radioClient,
		Logger:            log.Component("bridge"),
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	// An unexpected broker disconnect ends the bridge loop.
	mqttClient.SetOnConnectionLost(b.Fail)

	log.Info("initialisation complete, bridging")
	runErr := supervise(ctx, b, radioClient, log)

	stats := b.Stats()
	log.Info("bridge stopped",
		"packets_handled", stats.PacketsHandled,
		"packets_failed", stats.PacketsFailed,
		"publishes", stats.Publishes,
		"commands_sent", stats.CommandsSent,
	)

	if runErr != nil {
		return fmt.Errorf("bridge: %w", runErr)
	}

	log.Info("meshtastic2hass stopped")
	return nil
}

// runner is the part of the bridge supervise drives.
type runner interface {
	Run(ctx context.Context) error
}

// supervise runs the bridge loop next to a watcher that closes the radio
// link once the group's context ends, whether by signal or because the
// loop failed. Errors seen after ctx itself is cancelled are shutdown
// noise and are not reported.
func supervise(ctx context.Context, b runner, link io.Closer, log *logging.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return b.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("closing radio link")
		if err := link.Close(); err != nil {
			log.Error("error closing radio", "error", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil && ctx.Err() != nil {
		log.Debug("ignoring error during shutdown", "error", err)
		return nil
	}
	return err
}
