// internal/workers/ticket-response/retrieve-references/elasticsearch_test.go
package retrievereferences

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestElasticsearch(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestElasticsearchIndex_Query(t *testing.T) {
	client := newTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/kb-chunks/_search", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		knn := body["knn"].(map[string]interface{})
		assert.Equal(t, "embedding", knn["field"])
		assert.Equal(t, float64(2), knn["k"])
		assert.Equal(t, float64(20), knn["num_candidates"])
		filter := knn["filter"].(map[string]interface{})["term"].(map[string]interface{})
		assert.Equal(t, "docs", filter["namespace"])

		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_id":"1","_score":0.9,"_source":{"title":"Invoices","text":"Numbering","source":"doc-42"}},
			{"_id":"2","_score":0.7,"_source":{"title":"Exports","text":"CSV"}}
		]}}`))
	})

	idx := NewElasticsearchIndex(client, "kb-chunks", "")
	chunks, err := idx.Query(context.Background(), []float32{0.1, 0.2}, "docs", 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "doc-42", chunks[0].Source)
	assert.Equal(t, 1, chunks[0].Rank)
	assert.Equal(t, 2, chunks[1].Rank)
	assert.False(t, chunks[1].Complete())
}

func TestElasticsearchIndex_ErrorStatus(t *testing.T) {
	client := newTestElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"search_phase_execution_exception"}}`))
	})

	_, err := NewElasticsearchIndex(client, "kb-chunks", "vec").Query(context.Background(), []float32{1}, "", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "knn search failed")
}

func TestElasticsearchIndex_NoNamespaceFilter(t *testing.T) {
	idx := NewElasticsearchIndex(nil, "kb", "vec")
	q := idx.buildQuery([]float32{1}, "", 3)
	knn := q["knn"].(map[string]interface{})
	_, hasFilter := knn["filter"]
	assert.False(t, hasFilter)
	assert.Equal(t, "vec", knn["field"])
}
