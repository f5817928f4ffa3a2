package retrieval

import (
	"context"
	"database/sql"
	"sort"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"triage-agent/internal/triage"
)

// PostgresRetriever serves care-path snippets from the carepaths
// table. Candidate selection happens in SQL via array overlap; the
// final overlap ranking runs locally so the order matches the
// in-memory retriever exactly.
type PostgresRetriever struct {
	db *sql.DB
}

func NewPostgresRetriever(db *sql.DB) *PostgresRetriever {
	return &PostgresRetriever{db: db}
}

func (r *PostgresRetriever) Search(ctx context.Context, symptomTags []string, topK int) ([]triage.CarePathSnippet, error) {
	if len(symptomTags) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, topic, tags, guidance, next_step
		FROM carepaths
		WHERE tags && $1
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(symptomTags))
	if err != nil {
		return nil, errors.Wrap(err, "query carepaths")
	}
	defer rows.Close()

	queryTags := map[string]bool{}
	for _, t := range symptomTags {
		queryTags[t] = true
	}

	type scored struct {
		snippet triage.CarePathSnippet
		overlap int
	}
	var hits []scored
	for rows.Next() {
		var sn triage.CarePathSnippet
		if err := rows.Scan(&sn.ID, &sn.Topic, pq.Array(&sn.Tags), &sn.Guidance, &sn.NextStep); err != nil {
			return nil, errors.Wrap(err, "scan carepath")
		}
		overlap := 0
		for _, tag := range sn.Tags {
			if queryTags[tag] {
				overlap++
			}
		}
		hits = append(hits, scored{sn, overlap})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate carepaths")
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].overlap != hits[j].overlap {
			return hits[i].overlap > hits[j].overlap
		}
		return hits[i].snippet.ID < hits[j].snippet.ID
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}

	out := make([]triage.CarePathSnippet, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.snippet)
	}
	return out, nil
}
