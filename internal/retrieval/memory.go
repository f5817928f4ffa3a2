package retrieval

import (
	"context"
	"sort"

	"triage-agent/internal/triage"
)

// MemoryRetriever serves care-path snippets from an in-process corpus,
// ranked by symptom-tag overlap. It backs the engine when no knowledge
// database is configured and is the fixture retriever in tests.
type MemoryRetriever struct {
	snippets []triage.CarePathSnippet
}

// NewMemoryRetriever builds a retriever over the given corpus; with no
// arguments it loads the built-in care paths.
func NewMemoryRetriever(snippets ...triage.CarePathSnippet) *MemoryRetriever {
	if len(snippets) == 0 {
		snippets = DefaultCarePaths()
	}
	return &MemoryRetriever{snippets: snippets}
}

// Search returns up to topK snippets sharing at least one tag with the
// query, most overlapping first, ties broken by ID for determinism.
// It never fails; no overlap means an empty result.
func (r *MemoryRetriever) Search(_ context.Context, symptomTags []string, topK int) ([]triage.CarePathSnippet, error) {
	query := map[string]bool{}
	for _, t := range symptomTags {
		query[t] = true
	}

	type scored struct {
		snippet triage.CarePathSnippet
		overlap int
	}
	var hits []scored
	for _, sn := range r.snippets {
		overlap := 0
		for _, tag := range sn.Tags {
			if query[tag] {
				overlap++
			}
		}
		if overlap > 0 {
			hits = append(hits, scored{sn, overlap})
		}
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

// DefaultCarePaths is the built-in non-diagnostic knowledge corpus.
// Tags use the extractor's canonical symptom vocabulary so retrieval
// and slot state speak the same language.
func DefaultCarePaths() []triage.CarePathSnippet {
	return []triage.CarePathSnippet{
		{
			ID:       "cp-respiratory",
			Topic:    "respiratory",
			Tags:     []string{"cough", "sore_throat", "congestion"},
			Guidance: "Rest, fluids, and monitoring are usually reasonable for short-lived upper-respiratory symptoms.",
			NextStep: "Self-care and monitoring are reasonable; recheck if not improving.",
		},
		{
			ID:       "cp-fever",
			Topic:    "fever",
			Tags:     []string{"fever"},
			Guidance: "A short fever without warning signs can often be monitored at home with fluids and rest.",
			NextStep: "Monitor temperature; seek care if it persists beyond three days.",
		},
		{
			ID:       "cp-urinary",
			Topic:    "urinary",
			Tags:     []string{"urinary"},
			Guidance: "Mild, short-lived urinary discomfort can often be monitored initially with good hydration.",
			NextStep: "Arrange a GP/primary care appointment if symptoms persist or worsen.",
		},
		{
			ID:       "cp-headache",
			Topic:    "headache",
			Tags:     []string{"headache", "dizziness"},
			Guidance: "Common headaches often settle with rest, hydration, and a quiet environment.",
			NextStep: "Self-care and monitoring are reasonable; recheck if not improving.",
		},
		{
			ID:       "cp-gastro",
			Topic:    "gastrointestinal",
			Tags:     []string{"abdominal_pain", "nausea", "diarrhea"},
			Guidance: "Short episodes of stomach upset are commonly managed with fluids and a bland diet.",
			NextStep: "Arrange a GP/primary care appointment if symptoms persist beyond a few days.",
		},
		{
			ID:       "cp-skin",
			Topic:    "skin",
			Tags:     []string{"rash"},
			Guidance: "Localized rashes without breathing trouble or spreading swelling can usually be observed.",
			NextStep: "Arrange a GP/primary care appointment for a persistent or spreading rash.",
		},
		{
			ID:       "cp-ear",
			Topic:    "ear",
			Tags:     []string{"ear_pain"},
			Guidance: "Mild ear discomfort often improves within a couple of days.",
			NextStep: "Arrange a GP/primary care appointment if pain persists beyond 48 hours.",
		},
		{
			ID:       "cp-msk-back",
			Topic:    "musculoskeletal",
			Tags:     []string{"back_pain"},
			Guidance: "Uncomplicated back pain commonly responds to staying gently active.",
			NextStep: "Self-care and monitoring are reasonable; recheck if not improving.",
		},
	}
}
