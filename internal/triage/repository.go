package triage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/pkg/errors"
)

// Repository persists turn summaries. The engine treats it as a
// fire-and-forget sink; a write failure is logged, never fatal.
type Repository interface {
	TurnRecorder
	RecentSummaries(ctx context.Context, sessionID string, limit int) ([]TurnSummary, error)
}

type postgresRepo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepo{db: db}
}

func (r *postgresRepo) Record(ctx context.Context, s TurnSummary) error {
	askedJSON, err := json.Marshal(s.AskedSlots)
	if err != nil {
		return errors.Wrap(err, "marshal asked slots")
	}
	categoriesJSON, err := json.Marshal(s.Categories)
	if err != nil {
		return errors.Wrap(err, "marshal categories")
	}

	query := `
		INSERT INTO turn_summaries (request_id, session_id, status, safety_action, elapsed_ms, asked_slots, categories, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (request_id) DO NOTHING
	`
	_, err = r.db.ExecContext(ctx, query,
		s.RequestID, s.SessionID, s.Status, s.SafetyAction, s.ElapsedMS, askedJSON, categoriesJSON, s.CreatedAt)
	return errors.Wrap(err, "insert turn summary")
}

func (r *postgresRepo) RecentSummaries(ctx context.Context, sessionID string, limit int) ([]TurnSummary, error) {
	query := `
		SELECT request_id, session_id, status, safety_action, elapsed_ms, asked_slots, categories, created_at
		FROM turn_summaries
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query turn summaries")
	}
	defer rows.Close()

	var out []TurnSummary
	for rows.Next() {
		var s TurnSummary
		var askedJSON, categoriesJSON []byte
		if err := rows.Scan(&s.RequestID, &s.SessionID, &s.Status, &s.SafetyAction, &s.ElapsedMS, &askedJSON, &categoriesJSON, &s.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan turn summary")
		}
		if len(askedJSON) > 0 {
			if err := json.Unmarshal(askedJSON, &s.AskedSlots); err != nil {
				return nil, errors.Wrap(err, "unmarshal asked slots")
			}
		}
		if len(categoriesJSON) > 0 {
			if err := json.Unmarshal(categoriesJSON, &s.Categories); err != nil {
				return nil, errors.Wrap(err, "unmarshal categories")
			}
		}
		out = append(out, s)
	}
	return out, errors.Wrap(rows.Err(), "iterate turn summaries")
}
