package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ecomonitor/ecomonitor-stack/internal/app"
	"github.com/ecomonitor/ecomonitor-stack/internal/bridge"
	"github.com/ecomonitor/ecomonitor-stack/internal/simulator"
)

var bridgeMQTT bool

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Store device telemetry and announce it to the pipeline",
	Long: `Subscribes to the device telemetry subjects, writes every reading to the
object store and publishes an object-created notification on the events
stream. With --mqtt the bridge also subscribes to the MQTT broker.`,
	RunE: runBridge,
}

func init() {
	bridgeCmd.Flags().BoolVar(&bridgeMQTT, "mqtt", false, "also bridge telemetry from the MQTT broker")
	rootCmd.AddCommand(bridgeCmd)
}

func runBridge(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	js, err := a.EnsureEventsStream(ctx)
	if err != nil {
		return err
	}

	b := bridge.New(a.Objects, js, bridge.Config{
		Bucket:          cfg.ObjectStore.Bucket,
		EventsSubject:   cfg.NATS.EventsSubject,
		TelemetryPrefix: cfg.NATS.TelemetrySubject,
	}, logger)

	sub, err := b.ListenNATS(js)
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()

	if bridgeMQTT {
		client, err := simulator.NewMQTTClient(cfg.MQTT)
		if err != nil {
			return err
		}
		defer client.Disconnect(250)
		if err := b.ListenMQTT(ctx, client, cfg.MQTT.TopicPrefix); err != nil {
			return err
		}
	}

	<-ctx.Done()
	logger.Info("Bridge stopped")
	return nil
}
