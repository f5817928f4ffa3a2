package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage-agent/internal/triage"
)

func snippetIDs(snippets []triage.CarePathSnippet) []string {
	ids := make([]string, 0, len(snippets))
	for _, sn := range snippets {
		ids = append(ids, sn.ID)
	}
	return ids
}

func TestSearchRanksByOverlap(t *testing.T) {
	r := NewMemoryRetriever()

	hits, err := r.Search(context.Background(), []string{"cough", "sore_throat", "fever"}, 4)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	// Two overlapping tags beat one.
	assert.Equal(t, "cp-respiratory", hits[0].ID)
	assert.Contains(t, snippetIDs(hits), "cp-fever")
}

func TestSearchNoOverlapIsEmpty(t *testing.T) {
	r := NewMemoryRetriever()

	hits, err := r.Search(context.Background(), []string{"unknown_tag"}, 4)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = r.Search(context.Background(), nil, 4)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchLimitsToTopK(t *testing.T) {
	r := NewMemoryRetriever()

	hits, err := r.Search(context.Background(),
		[]string{"cough", "fever", "headache", "rash", "urinary"}, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearchTiesBreakByID(t *testing.T) {
	corpus := []triage.CarePathSnippet{
		{ID: "cp-b", Topic: "b", Tags: []string{"fever"}},
		{ID: "cp-a", Topic: "a", Tags: []string{"fever"}},
	}
	r := NewMemoryRetriever(corpus...)

	hits, err := r.Search(context.Background(), []string{"fever"}, 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"cp-a", "cp-b"}, snippetIDs(hits))
}

func TestDefaultCorpusCoversExtractionVocabulary(t *testing.T) {
	r := NewMemoryRetriever()
	for _, tag := range []string{"cough", "fever", "urinary", "headache", "nausea", "rash", "ear_pain", "back_pain"} {
		hits, err := r.Search(context.Background(), []string{tag}, 1)
		require.NoError(t, err)
		assert.NotEmpty(t, hits, "tag %q has no care path", tag)
	}
}
