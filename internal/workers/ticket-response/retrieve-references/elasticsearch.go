// internal/workers/ticket-response/retrieve-references/elasticsearch.go
package retrievereferences

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"ticket-responder/internal/models"
)

// ElasticsearchIndex serves kNN queries from an index holding title, text, source,
// namespace and a dense_vector field.
type ElasticsearchIndex struct {
	client      *elasticsearch.Client
	index       string
	vectorField string
}

func NewElasticsearchIndex(client *elasticsearch.Client, index, vectorField string) *ElasticsearchIndex {
	if vectorField == "" {
		vectorField = "embedding"
	}
	return &ElasticsearchIndex{client: client, index: index, vectorField: vectorField}
}

type knnResponse struct {
	Hits struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source struct {
				Title  string `json:"title"`
				Text   string `json:"text"`
				Source string `json:"source"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (e *ElasticsearchIndex) buildQuery(vector []float32, namespace string, topK int) map[string]interface{} {
	knn := map[string]interface{}{
		"field":          e.vectorField,
		"query_vector":   vector,
		"k":              topK,
		"num_candidates": topK * 10,
	}
	if namespace != "" {
		knn["filter"] = map[string]interface{}{
			"term": map[string]interface{}{"namespace": namespace},
		}
	}
	return map[string]interface{}{
		"knn":     knn,
		"size":    topK,
		"_source": []string{"title", "text", "source"},
	}
}

func (e *ElasticsearchIndex) Query(ctx context.Context, vector []float32, namespace string, topK int) ([]models.ReferenceChunk, error) {
	body, err := json.Marshal(e.buildQuery(vector, namespace, topK))
	if err != nil {
		return nil, fmt.Errorf("encode knn query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{e.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("knn search failed: %s", res.String())
	}

	var r knnResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode knn response: %w", err)
	}

	chunks := make([]models.ReferenceChunk, 0, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		chunks = append(chunks, models.ReferenceChunk{
			ID:     hit.ID,
			Title:  hit.Source.Title,
			Text:   hit.Source.Text,
			Source: hit.Source.Source,
			Score:  hit.Score,
			Rank:   i + 1,
		})
	}
	return chunks, nil
}
