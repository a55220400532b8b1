package store

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCluster answers index and get requests for a single index.
type fakeCluster struct {
	mu   sync.Mutex
	docs map[string][]byte
	fail int
}

func (c *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	if c.fail != 0 {
		w.WriteHeader(c.fail)
		_, _ = w.Write([]byte(`{"error":{"type":"cluster_block_exception","reason":"blocked"},"status":503}`))
		return
	}

	switch r.Method {
	case http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case http.MethodPut, http.MethodPost:
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), `"location":{`) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"mapper_parsing_exception","reason":"failed to parse field [location] of type [object]"},"status":400}`))
			return
		}
		c.docs[r.URL.Path] = body
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	case http.MethodGet:
		body, ok := c.docs[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"found":false}`))
			return
		}
		_, _ = w.Write([]byte(`{"found":true,"_source":` + string(body) + `}`))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestOpenSearch(t *testing.T) (*OpenSearchStore, *fakeCluster) {
	t.Helper()
	cluster := &fakeCluster{docs: make(map[string][]byte)}
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	client, err := opensearch.NewClient(opensearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewOpenSearchStore(client, "readings"), cluster
}

func TestOpenSearchStore_RoundTrip(t *testing.T) {
	s, cluster := newTestOpenSearch(t)
	ctx := context.Background()
	rec := testRecord()
	delete(rec.Fields, "location")

	require.NoError(t, s.Put(ctx, rec))
	require.Len(t, cluster.docs, 1)
	for _, body := range cluster.docs {
		assert.Contains(t, string(body), `"humidity":91.23`)
	}

	got, err := s.Get(ctx, rec.DeviceID, rec.Timestamp)
	require.NoError(t, err)
	assert.Equal(t, rec.Item(), got.Item())
	assert.Equal(t, json.Number("91.23"), got.Fields["humidity"])
}

func TestOpenSearchStore_MappingRejectionIsValidation(t *testing.T) {
	s, _ := newTestOpenSearch(t)

	err := s.Put(context.Background(), testRecord())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestOpenSearchStore_ServerErrorIsNotValidation(t *testing.T) {
	s, cluster := newTestOpenSearch(t)
	cluster.fail = http.StatusServiceUnavailable
	rec := testRecord()
	delete(rec.Fields, "location")

	err := s.Put(context.Background(), rec)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestOpenSearchStore_GetMissing(t *testing.T) {
	s, _ := newTestOpenSearch(t)
	_, err := s.Get(context.Background(), "dev", "ts")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenSearchStore_Ping(t *testing.T) {
	s, cluster := newTestOpenSearch(t)
	require.NoError(t, s.Ping(context.Background()))

	cluster.fail = http.StatusServiceUnavailable
	assert.Error(t, s.Ping(context.Background()))
}
