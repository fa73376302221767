// internal/scoring/store/store.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"trustscore-workers/internal/models"
)

// Store persists current scores keyed by (entity type, entity id).
// History lives in the ledger; this table only ever holds the latest
// breakdown per entity.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Previous returns the currently persisted total score, or nil when the
// entity has never been scored.
func (s *Store) Previous(ctx context.Context, entityType models.EntityType, entityID string) (*float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `
		SELECT total_score FROM profile_scores
		WHERE entity_type = $1 AND entity_id = $2`,
		string(entityType), entityID).Scan(&total)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load previous score: %w", err)
	}
	return &total, nil
}

// Upsert writes the latest breakdown for an entity, replacing any
// earlier row.
func (s *Store) Upsert(ctx context.Context, entityType models.EntityType, entityID string, bd models.ScoreBreakdown) error {
	components, err := json.Marshal(bd)
	if err != nil {
		return fmt.Errorf("marshal score components: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO profile_scores (
			entity_type, entity_id, total_score, components,
			engine_version, vertical, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			total_score = EXCLUDED.total_score,
			components = EXCLUDED.components,
			engine_version = EXCLUDED.engine_version,
			vertical = EXCLUDED.vertical,
			updated_at = EXCLUDED.updated_at`,
		string(entityType),
		entityID,
		bd.TotalScore,
		components,
		bd.EngineVersion,
		bd.Vertical,
		s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert score: %w", err)
	}
	return nil
}
