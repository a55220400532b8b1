package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ecomonitor/ecomonitor-stack/internal/model"
)

// PostgresStore keeps records in the sensor_readings table. Attributes other
// than the canonical string columns live in a JSONB column.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Put(ctx context.Context, rec model.CanonicalRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	attrs, err := json.Marshal(payload(rec))
	if err != nil {
		return &ValidationError{Reason: "attributes are not encodable", Err: err}
	}

	query := `
		INSERT INTO sensor_readings (device_id, "timestamp", reading_date, sensor_type, attributes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_id, "timestamp") DO UPDATE SET
			reading_date = EXCLUDED.reading_date,
			sensor_type  = EXCLUDED.sensor_type,
			attributes   = EXCLUDED.attributes,
			stored_at    = now()
	`

	_, err = s.pool.Exec(ctx, query, rec.DeviceID, rec.Timestamp, rec.ReadingDate, rec.SensorType, attrs)
	if err != nil {
		if reason, ok := validationReason(err); ok {
			return &ValidationError{Reason: reason, Err: err}
		}
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, deviceID, timestamp string) (model.CanonicalRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
		SELECT reading_date, sensor_type, attributes
		FROM sensor_readings
		WHERE device_id = $1 AND "timestamp" = $2
	`

	var (
		readingDate string
		sensorType  string
		attrs       []byte
	)
	err := s.pool.QueryRow(ctx, query, deviceID, timestamp).Scan(&readingDate, &sensorType, &attrs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.CanonicalRecord{}, ErrNotFound
		}
		return model.CanonicalRecord{}, fmt.Errorf("failed to get reading: %w", err)
	}

	item, err := decodeObject(bytes.NewReader(attrs))
	if err != nil {
		return model.CanonicalRecord{}, fmt.Errorf("failed to decode attributes: %w", err)
	}
	if item == nil {
		item = make(map[string]any)
	}
	item[model.FieldDeviceID] = deviceID
	item[model.FieldTimestamp] = timestamp
	item[model.FieldReadingDate] = readingDate
	if _, ok := item[model.FieldSensorType]; !ok {
		item[model.FieldSensorType] = sensorType
	}
	return model.RecordFromItem(item), nil
}

// validationReason reports whether err is a data exception (class 22) or an
// integrity constraint violation (class 23).
func validationReason(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23") {
		return fmt.Sprintf("%s (SQLSTATE %s)", pgErr.Message, pgErr.Code), true
	}
	return "", false
}
