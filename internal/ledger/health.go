// internal/ledger/health.go
package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"trustscore-workers/internal/models"
)

// ElasticHealthSink writes health events into an Elasticsearch index.
// The index is append-only from this service's point of view.
type ElasticHealthSink struct {
	indexer DocumentIndexer
	index   string
}

func NewElasticHealthSink(indexer DocumentIndexer, index string) *ElasticHealthSink {
	return &ElasticHealthSink{indexer: indexer, index: index}
}

func (s *ElasticHealthSink) Emit(ctx context.Context, event models.HealthEvent) error {
	doc, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal health event: %w", err)
	}
	return s.indexer.Index(ctx, s.index, doc)
}
