// Package pipeline turns an object-created notification into a persisted
// canonical sensor record.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"

	"github.com/ecomonitor/ecomonitor-stack/internal/alert"
	"github.com/ecomonitor/ecomonitor-stack/internal/event"
	"github.com/ecomonitor/ecomonitor-stack/internal/logging"
	"github.com/ecomonitor/ecomonitor-stack/internal/metrics"
	"github.com/ecomonitor/ecomonitor-stack/internal/model"
	"github.com/ecomonitor/ecomonitor-stack/internal/normalizer"
	"github.com/ecomonitor/ecomonitor-stack/internal/objectstore"
	"github.com/ecomonitor/ecomonitor-stack/internal/store"
)

// Metric names. The per-type metric is "<Type>SensorDataProcessed".
const (
	MetricProcessingStarted = "DataProcessingStarted"
	MetricReadsSuccessful   = "S3ReadsSuccessful"
	MetricFileSizeBytes     = "S3FileSizeBytes"
	MetricParseErrors       = "JsonParseErrors"
	MetricProcessedOK       = "DataProcessedSuccessfully"
	MetricFileNotFound      = "S3FileNotFoundErrors"
	MetricValidationErrors  = "DynamoDBValidationErrors"
	MetricProcessingErrors  = "DataProcessingErrors"
	metricSensorTypeSuffix  = "SensorDataProcessed"
	dimensionSensorType     = "SensorType"
	contentPreviewBytes     = 200
)

// Alert subjects.
const (
	SubjectMissingKey      = "EcoMonitor S3 Missing Key Error"
	SubjectValidationError = "EcoMonitor DynamoDB Validation Error"
	SubjectProcessingError = "EcoMonitor S3 Processing Error"
)

// SensorTypeMetric returns the processed-count metric name for a sensor type.
func SensorTypeMetric(sensorType string) string {
	return titleCase(sensorType) + metricSensorTypeSuffix
}

// Fetcher reads raw objects. objectstore.Store satisfies it.
type Fetcher interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// Deps are the collaborators of a Pipeline. Objects and Store are required;
// the rest default to no-op or standard implementations.
type Deps struct {
	Objects       Fetcher
	Store         store.Store
	Metrics       *metrics.Recorder
	Alerts        *alert.Notifier
	Inferrer      *normalizer.Inferrer
	Canonicalizer *normalizer.Canonicalizer
	Logger        *logging.Logger
}

// Pipeline processes one notification per Process call. It holds no mutable
// state and is safe for concurrent use.
type Pipeline struct {
	objects  Fetcher
	store    store.Store
	metrics  *metrics.Recorder
	alerts   *alert.Notifier
	inferrer *normalizer.Inferrer
	canon    *normalizer.Canonicalizer
	logger   *logging.Logger
}

func New(deps Deps) *Pipeline {
	p := &Pipeline{
		objects:  deps.Objects,
		store:    deps.Store,
		metrics:  deps.Metrics,
		alerts:   deps.Alerts,
		inferrer: deps.Inferrer,
		canon:    deps.Canonicalizer,
		logger:   deps.Logger,
	}
	if p.inferrer == nil {
		p.inferrer = normalizer.NewInferrer()
	}
	if p.canon == nil {
		p.canon = normalizer.New()
	}
	if p.logger == nil {
		p.logger = logging.Default()
	}
	return p
}

// invocation carries the per-call state through the steps of Process.
type invocation struct {
	loc    event.Location
	stage  Stage
	record *model.CanonicalRecord
	start  time.Time
}

func (inv *invocation) result(outcome Outcome, msg string, err error) Result {
	return Result{
		Outcome:  outcome,
		Message:  msg,
		Location: inv.loc,
		Stage:    inv.stage,
		Record:   inv.record,
		Err:      err,
		Duration: time.Since(inv.start),
	}
}

// Process runs fetch, parse, inference, normalization and persistence for the
// first record of evt. It always returns a Result; failures are logged,
// counted and alerted before returning. requestID becomes the synthesized
// timestamp when the payload has none.
func (p *Pipeline) Process(ctx context.Context, evt events.S3Event, requestID string) (res Result) {
	if requestID == "" {
		requestID = logging.NewRequestID()
	}
	ctx = logging.WithRequestID(ctx, requestID)
	inv := &invocation{stage: StageStart, start: time.Now()}
	log := p.logger.WithContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			res = p.fail(ctx, inv, fmt.Errorf("panic during %s stage: %v", inv.stage, r))
		}
	}()

	log.Info("processing object-created event", "records", len(evt.Records), "event", eventJSON(evt))
	p.metrics.Count(ctx, MetricProcessingStarted)

	loc, err := event.Locate(evt)
	if err != nil {
		return p.fail(ctx, inv, err)
	}
	inv.loc = loc
	log = log.With(logging.Bucket(loc.Bucket), logging.Key(loc.Key))
	log.Info("processing object")

	content, err := p.objects.Get(ctx, loc.Bucket, loc.Key)
	if err != nil {
		if errors.Is(err, objectstore.ErrObjectNotFound) {
			return p.notFound(ctx, inv, err)
		}
		return p.fail(ctx, inv, err)
	}
	if !utf8.Valid(content) {
		return p.fail(ctx, inv, fmt.Errorf("object content is not valid UTF-8"))
	}
	raw := string(content)
	log.Info("read object content", "content", preview(raw, contentPreviewBytes), "size_bytes", len(content))
	p.metrics.Count(ctx, MetricReadsSuccessful)
	p.metrics.Measure(ctx, MetricFileSizeBytes, float64(len(content)), metrics.UnitBytes)
	inv.stage = StageFetched

	reading, err := Parse(content)
	if err != nil {
		log.Error("failed to parse object content", logging.Error(err), "raw_content", raw)
		p.metrics.Count(ctx, MetricParseErrors)
		return p.malformed(ctx, inv, err)
	}
	inv.stage = StageParsed

	inferred := p.inferrer.FromKey(loc.Key)
	sensorType := p.inferrer.Resolve(loc.Key, reading)
	log.Info("detected sensor type",
		logging.SensorType(sensorType),
		"inferred_type", string(inferred),
		"declared", reading.Has(model.FieldSensorType),
	)
	p.metrics.Count(ctx, SensorTypeMetric(sensorType), metrics.Dimension{Name: dimensionSensorType, Value: sensorType})
	inv.stage = StageTypeInferred

	rec := p.canon.Canonicalize(reading, normalizer.Input{
		Key:          loc.Key,
		InferredType: inferred,
		RequestID:    requestID,
	})
	inv.record = &rec
	inv.stage = StageNormalized
	log.Info("persisting record",
		logging.Backend(p.store.Name()),
		logging.DeviceID(rec.DeviceID),
		"record", recordJSON(rec),
	)

	if err := p.store.Put(ctx, rec); err != nil {
		if errors.Is(err, store.ErrValidation) {
			return p.rejected(ctx, inv, err)
		}
		return p.fail(ctx, inv, err)
	}
	inv.stage = StagePersisted

	log.Info("record persisted", logging.DeviceID(rec.DeviceID), "record", recordJSON(rec))
	p.metrics.Count(ctx, MetricProcessedOK)
	return inv.result(Success, "Successfully processed "+loc.Key, nil)
}

func (p *Pipeline) notFound(ctx context.Context, inv *invocation, err error) Result {
	msg := fmt.Sprintf("The object key %s does not exist in bucket %s. It may have been deleted.", inv.loc.Key, inv.loc.Bucket)
	p.logger.ErrorContext(ctx, msg, logging.Bucket(inv.loc.Bucket), logging.Key(inv.loc.Key))
	p.metrics.Count(ctx, MetricFileNotFound)
	p.alerts.Notify(ctx, SubjectMissingKey, msg)
	return inv.result(NotFound, "Error: File not found - "+inv.loc.Key, err)
}

func (p *Pipeline) rejected(ctx context.Context, inv *invocation, err error) Result {
	name := p.store.Name()
	reason := err.Error()
	var verr *store.ValidationError
	if errors.As(err, &verr) {
		reason = verr.Reason
	}
	msg := fmt.Sprintf("%s validation error for file %s: %s", name, inv.loc.Key, reason)
	p.logger.ErrorContext(ctx, msg,
		logging.Bucket(inv.loc.Bucket),
		logging.Key(inv.loc.Key),
		logging.Backend(name),
		logging.Error(err),
	)
	if inv.record != nil {
		p.logger.ErrorContext(ctx, "record that caused the error", "record", recordJSON(*inv.record))
	}
	p.metrics.Count(ctx, MetricValidationErrors)
	p.alerts.Notify(ctx, SubjectValidationError, msg)
	return inv.result(ValidationFailed, fmt.Sprintf("Error: %s validation failed - %s", name, reason), err)
}

// malformed finishes a parse failure. The parse-error count was already
// emitted, so unlike fail no processing-error count is added.
func (p *Pipeline) malformed(ctx context.Context, inv *invocation, err error) Result {
	p.alertProcessingError(ctx, inv, err)
	return inv.result(Malformed, "Error processing file: "+err.Error(), err)
}

func (p *Pipeline) fail(ctx context.Context, inv *invocation, err error) Result {
	p.alertProcessingError(ctx, inv, err)
	p.metrics.Count(ctx, MetricProcessingErrors)
	return inv.result(GenericFailure, "Error processing file: "+err.Error(), err)
}

func (p *Pipeline) alertProcessingError(ctx context.Context, inv *invocation, err error) {
	msg := fmt.Sprintf("Error processing S3 file %s: %v", inv.loc, err)
	p.logger.ErrorContext(ctx, msg,
		logging.Bucket(inv.loc.Bucket),
		logging.Key(inv.loc.Key),
		"stage", string(inv.stage),
		logging.Error(err),
	)
	p.alerts.Notify(ctx, SubjectProcessingError, msg)
}

func eventJSON(evt events.S3Event) string {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Sprintf("<unencodable event: %v>", err)
	}
	return string(data)
}

func recordJSON(rec model.CanonicalRecord) string {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Sprintf("%v", rec.Item())
	}
	return string(data)
}
