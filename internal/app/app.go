// Package app constructs the pipeline and its collaborators from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ecomonitor/ecomonitor-stack/internal/alert"
	"github.com/ecomonitor/ecomonitor-stack/internal/config"
	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
	"github.com/ecomonitor/ecomonitor-stack/internal/metrics"
	"github.com/ecomonitor/ecomonitor-stack/internal/objectstore"
	"github.com/ecomonitor/ecomonitor-stack/internal/pipeline"
	"github.com/ecomonitor/ecomonitor-stack/internal/service"
	"github.com/ecomonitor/ecomonitor-stack/internal/store"

	natsclient "github.com/ecomonitor/ecomonitor-stack/internal/messaging/nats"
)

// App holds the constructed dependencies of one process.
type App struct {
	Config    *config.Config
	Logger    *logging.Logger
	Objects   objectstore.Store
	Store     store.Store
	Metrics   *metrics.Recorder
	Alerts    *alert.Notifier
	Pipeline  *pipeline.Pipeline
	Processor *service.Processor

	// Registry is set when metrics are exported through Prometheus.
	Registry *prometheus.Registry

	awsCfg  *aws.Config
	js      *natsclient.JetStreamClient
	checks  map[string]service.Check
	closers []func()
}

// New builds every dependency named by cfg. Remote clients are only created
// for the backends that are selected.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	a := &App{Config: cfg, Logger: logger, checks: make(map[string]service.Check)}

	var err error
	if a.Objects, err = a.objectStore(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if a.Store, err = a.durableStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	sink, err := a.metricsSink(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Metrics = metrics.NewRecorder(sink, logger)

	channel, err := a.alertChannel(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Alerts = alert.NewNotifier(channel, logger)

	a.Pipeline = pipeline.New(pipeline.Deps{
		Objects: a.Objects,
		Store:   a.Store,
		Metrics: a.Metrics,
		Alerts:  a.Alerts,
		Logger:  logger,
	})
	a.Processor = service.NewProcessor(a.Pipeline)
	for name, check := range a.checks {
		a.Processor.AddCheck(name, check)
	}

	logger.Info("Pipeline initialized",
		"objectstore", a.Objects.Type(),
		"store", a.Store.Name(),
		"metrics", cfg.Metrics.Backend,
		"alerts", cfg.Alerts.Backend,
		"alerts_enabled", a.Alerts.Enabled(),
	)
	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// JetStream connects to NATS on first use and returns the shared client.
func (a *App) JetStream() (*natsclient.JetStreamClient, error) {
	if a.js != nil {
		return a.js, nil
	}

	ncfg := natsclient.DefaultConfig()
	ncfg.URL = a.Config.NATS.URL
	ncfg.Name = a.Config.NATS.Name

	js, err := natsclient.NewJetStreamClient(ncfg, a.Logger)
	if err != nil {
		return nil, err
	}
	a.js = js
	a.closers = append(a.closers, func() { _ = js.Close() })
	a.addCheck("nats", func(context.Context) error {
		if !js.IsConnected() {
			return fmt.Errorf("not connected")
		}
		return nil
	})
	a.Logger.Info("Connected to NATS", "url", ncfg.URL)
	return js, nil
}

// EnsureEventsStream creates the notification stream and durable consumer.
func (a *App) EnsureEventsStream(ctx context.Context) (*natsclient.JetStreamClient, error) {
	js, err := a.JetStream()
	if err != nil {
		return nil, err
	}
	n := a.Config.NATS
	if _, err := js.CreateOrUpdateStream(ctx, natsclient.EventsStreamConfig(n.EventsStream, n.EventsSubject)); err != nil {
		return nil, err
	}
	if _, err := js.CreateOrUpdateConsumer(ctx, n.EventsStream, natsclient.DefaultConsumerConfig(n.Consumer, n.EventsSubject)); err != nil {
		return nil, err
	}
	return js, nil
}

func (a *App) addCheck(name string, check service.Check) {
	if a.Processor != nil {
		a.Processor.AddCheck(name, check)
		return
	}
	a.checks[name] = check
}

func (a *App) aws(ctx context.Context) (aws.Config, error) {
	if a.awsCfg != nil {
		return *a.awsCfg, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.Config.AWS.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	a.awsCfg = &cfg
	return cfg, nil
}

func (a *App) endpoint() *string {
	if a.Config.AWS.Endpoint == "" {
		return nil
	}
	return aws.String(a.Config.AWS.Endpoint)
}

func (a *App) objectStore(ctx context.Context) (objectstore.Store, error) {
	switch a.Config.ObjectStore.Backend {
	case "s3":
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if ep := a.endpoint(); ep != nil {
				o.BaseEndpoint = ep
				o.UsePathStyle = true
			}
		})
		return objectstore.NewS3Store(client), nil
	case "jetstream":
		js, err := a.JetStream()
		if err != nil {
			return nil, err
		}
		objects := objectstore.NewJetStreamStore(js.JetStream())
		if err := objects.EnsureBucket(ctx, a.Config.ObjectStore.Bucket); err != nil {
			return nil, err
		}
		return objects, nil
	case "memory":
		return objectstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown objectstore backend: %s", a.Config.ObjectStore.Backend)
	}
}

func (a *App) durableStore(ctx context.Context) (store.Store, error) {
	cfg := a.Config
	switch cfg.Store.Backend {
	case "dynamodb":
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			o.BaseEndpoint = a.endpoint()
		})
		return store.NewDynamoStore(client, cfg.Store.Table), nil
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		a.addCheck("postgres", pg.Ping)
		return pg, nil
	case "opensearch":
		client, err := store.NewOpenSearchClient(cfg.OpenSearch)
		if err != nil {
			return nil, err
		}
		search := store.NewOpenSearchStore(client, cfg.OpenSearch.Index)
		if err := search.EnsureIndex(ctx); err != nil {
			return nil, err
		}
		a.addCheck("opensearch", search.Ping)
		return search, nil
	case "redis":
		rs, err := store.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = rs.Close() })
		a.addCheck("redis", rs.Ping)
		return rs, nil
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

func (a *App) metricsSink(ctx context.Context) (metrics.Sink, error) {
	switch a.Config.Metrics.Backend {
	case "cloudwatch":
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			o.BaseEndpoint = a.endpoint()
		})
		return metrics.NewCloudWatchSink(client, a.Config.Metrics.Namespace), nil
	case "prometheus":
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		sink, err := metrics.NewPrometheusSink(reg)
		if err != nil {
			return nil, err
		}
		a.Registry = reg
		return sink, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown metrics backend: %s", a.Config.Metrics.Backend)
	}
}

func (a *App) alertChannel(ctx context.Context) (alert.Channel, error) {
	cfg := a.Config.Alerts
	switch cfg.Backend {
	case "sns":
		if cfg.SNSTopicARN == "" {
			a.Logger.Warn("No SNS topic configured, alerts disabled")
			return nil, nil
		}
		awsCfg, err := a.aws(ctx)
		if err != nil {
			return nil, err
		}
		client := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
			o.BaseEndpoint = a.endpoint()
		})
		return alert.NewSNSChannel(client, cfg.SNSTopicARN), nil
	case "nats":
		js, err := a.JetStream()
		if err != nil {
			return nil, err
		}
		return alert.NewNATSChannel(js, cfg.Subject), nil
	case "webhook":
		return alert.NewWebhookChannel(cfg.WebhookURL, cfg.Timeout), nil
	case "slack":
		return alert.NewSlackChannel(cfg.WebhookURL, cfg.Timeout), nil
	case "log":
		return alert.NewLogChannel(a.Logger), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown alerts backend: %s", cfg.Backend)
	}
}
