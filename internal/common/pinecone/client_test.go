// internal/common/pinecone/client_test.go
package pinecone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-responder/internal/common/config"
)

func TestQuery_ResolvesHostOnce(t *testing.T) {
	var describeCalls int32

	data := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/query", r.URL.Path)
		assert.Equal(t, "pc-key", r.Header.Get("Api-Key"))
		assert.Equal(t, "2024-07", r.Header.Get("X-Pinecone-API-Version"))

		var req queryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 3, req.TopK)
		assert.Equal(t, "docs", req.Namespace)
		assert.True(t, req.IncludeMetadata)
		assert.Equal(t, []float32{0.5, 0.25}, req.Vector)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"namespace":"docs","matches":[
			{"id":"a","score":0.91,"metadata":{"title":"Invoices","text":"Numbering rules","source":"doc-42"}},
			{"id":"b","score":0.80,"metadata":{"title":"Exports","text":"CSV","source":7}},
			{"id":"c","score":0.70}
		]}`))
	}))
	defer data.Close()

	control := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&describeCalls, 1)
		assert.Equal(t, "/indexes/kb", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"name": "kb", "dimension": 1536, "host": data.URL})
	}))
	defer control.Close()

	client := NewClient(&config.PineconeConfig{
		APIKey:        "pc-key",
		IndexName:     "kb",
		ControllerURL: control.URL,
	}, 5*time.Second, 0)

	for i := 0; i < 2; i++ {
		chunks, err := client.Query(context.Background(), []float32{0.5, 0.25}, "docs", 3)
		require.NoError(t, err)
		require.Len(t, chunks, 3)

		assert.Equal(t, "Invoices", chunks[0].Title)
		assert.Equal(t, "doc-42", chunks[0].Source)
		assert.Equal(t, 1, chunks[0].Rank)
		assert.InDelta(t, 0.91, chunks[0].Score, 1e-9)
		assert.Equal(t, "7", chunks[1].Source)
		assert.False(t, chunks[2].Complete())
		assert.Equal(t, 3, chunks[2].Rank)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&describeCalls))
}

func TestHost_Configured(t *testing.T) {
	client := NewClient(&config.PineconeConfig{Host: "kb-abc.svc.pinecone.io/"}, time.Second, 0)
	host, err := client.Host(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://kb-abc.svc.pinecone.io", host)
}

func TestHost_DescribeFails(t *testing.T) {
	control := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer control.Close()

	client := NewClient(&config.PineconeConfig{IndexName: "missing", ControllerURL: control.URL}, time.Second, 0)
	_, err := client.Host(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "describe index missing")
}

func TestQuery_StatusError(t *testing.T) {
	data := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer data.Close()

	client := NewClient(&config.PineconeConfig{Host: data.URL}, time.Second, 0)
	_, err := client.Query(context.Background(), []float32{1}, "", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pinecone query")
}
