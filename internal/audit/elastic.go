package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"admin-auth-service/internal/client"
	"admin-auth-service/internal/models"
)

// ElasticSink indexes entries for the admin audit search endpoint.
type ElasticSink struct {
	es    *client.ESClient
	index string
}

func NewElasticSink(es *client.ESClient, index string) *ElasticSink {
	return &ElasticSink{es: es, index: index}
}

func (s *ElasticSink) Name() string { return "elasticsearch" }

func (s *ElasticSink) Write(ctx context.Context, entry models.AuditEntry) error {
	res, err := s.es.IndexDocument(ctx, s.index, entry.ID, entry)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index audit entry: %s", res.Status())
	}
	return nil
}

type esHits struct {
	Hits struct {
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Query runs a filtered, newest-first search over the audit index.
func (s *ElasticSink) Query(ctx context.Context, q Query) ([]models.AuditEntry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	var filters []map[string]interface{}
	if q.Action != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"action": string(q.Action)},
		})
	}
	if q.UserID != "" {
		filters = append(filters, map[string]interface{}{
			"term": map[string]interface{}{"user_id": q.UserID},
		})
	}

	query := map[string]interface{}{
		"size": limit,
		"sort": []map[string]interface{}{
			{"created_at": map[string]interface{}{"order": "desc"}},
		},
	}
	if len(filters) > 0 {
		query["query"] = map[string]interface{}{
			"bool": map[string]interface{}{"filter": filters},
		}
	}

	res, err := s.es.Search(ctx, s.index, query)
	if err != nil {
		return nil, err
	}

	var parsed esHits
	if err := s.es.ParseResponse(res, &parsed); err != nil {
		return nil, err
	}

	entries := make([]models.AuditEntry, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		var entry models.AuditEntry
		if err := json.Unmarshal(hit.Source, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
