package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
	"github.com/ecomonitor/ecomonitor-stack/internal/simulator"

	natsclient "github.com/ecomonitor/ecomonitor-stack/internal/messaging/nats"
)

var (
	simulateKinds     []string
	simulateCount     int
	simulateInterval  time.Duration
	simulateSeed      int64
	simulateTransport string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Publish synthetic sensor readings",
	Long: `Runs one simulated device per sensor kind and publishes a reading every
interval on the device telemetry transport.

Examples:
  # All kinds over MQTT, once a minute
  ecomon simulate

  # Five CO2 readings over NATS, one per second
  ecomon simulate --kind co2 --transport nats --count 5 --interval 1s`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringSliceVar(&simulateKinds, "kind", nil, "sensor kinds to simulate (default: simulator.kinds)")
	simulateCmd.Flags().IntVar(&simulateCount, "count", 0, "readings per kind, 0 runs until interrupted")
	simulateCmd.Flags().DurationVar(&simulateInterval, "interval", 0, "time between readings (default: simulator.interval)")
	simulateCmd.Flags().Int64Var(&simulateSeed, "seed", 0, "random seed, 0 picks one")
	simulateCmd.Flags().StringVar(&simulateTransport, "transport", "", "mqtt or nats (default: simulator.transport)")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	kinds := simulateKinds
	if len(kinds) == 0 {
		kinds = cfg.Simulator.Kinds
	}
	interval := simulateInterval
	if interval == 0 {
		interval = cfg.Simulator.Interval
	}
	if interval <= 0 {
		return fmt.Errorf("simulator interval must be positive, got %s", interval)
	}
	transport := simulateTransport
	if transport == "" {
		transport = cfg.Simulator.Transport
	}

	pub, closePub, err := newSimulatorPublisher(transport)
	if err != nil {
		return err
	}
	defer closePub()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for i, name := range kinds {
		kind, err := simulator.KindFor(name)
		if err != nil {
			return err
		}
		opts := []simulator.Option{simulator.WithLogger(logger)}
		if simulateSeed != 0 {
			opts = append(opts, simulator.WithSeed(simulateSeed+int64(i)))
		}
		producer := simulator.NewProducer(kind, pub, opts...)

		g.Go(func() error {
			return producer.Run(ctx, interval, simulateCount)
		})
	}

	logger.Info("Simulating devices", "kinds", kinds, "transport", pub.Name(), "interval", interval.String())
	return g.Wait()
}

func newSimulatorPublisher(transport string) (simulator.Publisher, func(), error) {
	switch transport {
	case "mqtt":
		client, err := simulator.NewMQTTClient(cfg.MQTT)
		if err != nil {
			return nil, nil, err
		}
		return simulator.NewMQTTPublisher(client, cfg.MQTT.TopicPrefix), func() { client.Disconnect(250) }, nil
	case "nats":
		ncfg := natsclient.DefaultConfig()
		ncfg.URL = cfg.NATS.URL
		ncfg.Name = cfg.NATS.Name + "-simulator"
		client, err := natsclient.NewClient(ncfg, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := client.Drain(); err != nil {
				logger.Warn("NATS drain failed", logging.Error(err))
			}
		}
		return simulator.NewNATSPublisher(client, cfg.NATS.TelemetrySubject), closeFn, nil
	default:
		return nil, nil, fmt.Errorf("unknown simulator transport: %s", transport)
	}
}
