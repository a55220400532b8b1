package store

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/ecomonitor/ecomonitor-stack/internal/config"
	"github.com/ecomonitor/ecomonitor-stack/internal/model"
)

// Error types OpenSearch uses when a document does not fit the index mapping.
var openSearchValidationTypes = map[string]bool{
	"mapper_parsing_exception":         true,
	"strict_dynamic_mapping_exception": true,
	"illegal_argument_exception":       true,
	"document_parsing_exception":       true,
}

// NewOpenSearchClient builds a client for cfg without contacting the cluster.
func NewOpenSearchClient(cfg config.OpenSearchConfig) (*opensearch.Client, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.TLSSkipVerify,
			},
		},
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create opensearch client: %w", err)
	}
	return client, nil
}

// OpenSearchStore indexes one document per record with id "<device_id>|<timestamp>".
type OpenSearchStore struct {
	client *opensearch.Client
	index  string
}

func NewOpenSearchStore(client *opensearch.Client, index string) *OpenSearchStore {
	return &OpenSearchStore{client: client, index: index}
}

func (s *OpenSearchStore) Name() string { return "opensearch" }

func (s *OpenSearchStore) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("opensearch ping: %s", res.Status())
	}
	return nil
}

func documentID(deviceID, timestamp string) string {
	return deviceID + "|" + timestamp
}

// EnsureIndex creates the index with keyword mappings for the canonical fields.
func (s *OpenSearchStore) EnsureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", s.index, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	mapping := map[string]any{
		"mappings": map[string]any{
			"dynamic": true,
			"properties": map[string]any{
				model.FieldDeviceID:    map[string]any{"type": "keyword"},
				model.FieldTimestamp:   map[string]any{"type": "keyword"},
				model.FieldReadingDate: map[string]any{"type": "keyword"},
				model.FieldSensorType:  map[string]any{"type": "keyword"},
			},
		},
	}
	body, err := json.Marshal(mapping)
	if err != nil {
		return err
	}

	res, err = s.client.Indices.Create(s.index,
		s.client.Indices.Create.WithBody(bytes.NewReader(body)),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", s.index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		if strings.Contains(string(msg), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("failed to create index %s: %s - %s", s.index, res.Status(), string(msg))
	}
	return nil
}

func (s *OpenSearchStore) Put(ctx context.Context, rec model.CanonicalRecord) error {
	body, err := json.Marshal(rec.Item())
	if err != nil {
		return &ValidationError{Reason: "document is not encodable", Err: err}
	}

	res, err := s.client.Index(s.index, bytes.NewReader(body),
		s.client.Index.WithDocumentID(documentID(rec.DeviceID, rec.Timestamp)),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to index reading: %w", err)
	}
	defer res.Body.Close()

	if !res.IsError() {
		return nil
	}

	var failure struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	raw, _ := io.ReadAll(res.Body)
	_ = json.Unmarshal(raw, &failure)

	if res.StatusCode == http.StatusBadRequest && openSearchValidationTypes[failure.Error.Type] {
		return &ValidationError{Reason: failure.Error.Type + ": " + failure.Error.Reason}
	}
	return fmt.Errorf("failed to index reading: %s - %s", res.Status(), string(raw))
}

func (s *OpenSearchStore) Get(ctx context.Context, deviceID, timestamp string) (model.CanonicalRecord, error) {
	res, err := s.client.Get(s.index, documentID(deviceID, timestamp), s.client.Get.WithContext(ctx))
	if err != nil {
		return model.CanonicalRecord{}, fmt.Errorf("failed to get reading: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return model.CanonicalRecord{}, ErrNotFound
	}
	if res.IsError() {
		return model.CanonicalRecord{}, fmt.Errorf("failed to get reading: %s", res.Status())
	}

	doc, err := decodeObject(res.Body)
	if err != nil {
		return model.CanonicalRecord{}, fmt.Errorf("failed to decode document: %w", err)
	}
	source, ok := doc["_source"].(map[string]any)
	if !ok {
		return model.CanonicalRecord{}, ErrNotFound
	}
	return model.RecordFromItem(source), nil
}
