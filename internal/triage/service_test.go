package triage_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage-agent/internal/agent"
	"triage-agent/internal/retrieval"
	"triage-agent/internal/triage"
)

type failingReviewer struct{}

func (failingReviewer) Review(context.Context, triage.Draft, triage.SafetyContext) (triage.SafetyVerdict, error) {
	return triage.SafetyVerdict{}, context.DeadlineExceeded
}

func newTestService(reviewer triage.Reviewer) triage.Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := triage.NewSafetyGate(reviewer, time.Second)
	return triage.NewService(
		triage.NewMemoryStore(),
		agent.NewRuleExtractor(),
		retrieval.NewMemoryRetriever(),
		gate,
		nil,
		nil,
		logger,
	)
}

func TestMultiTurnSlotFilling(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	r1 := svc.HandleTurn(ctx, "s1", "Dry cough and sore throat for 2 days, no fever")
	require.Equal(t, triage.StatusAsk, r1.Status)
	assert.Contains(t, r1.Reply, "How old")

	r2 := svc.HandleTurn(ctx, "s1", "35 years")
	require.Equal(t, triage.StatusAsk, r2.Status)
	assert.Contains(t, r2.Reply, "How severe")

	r3 := svc.HandleTurn(ctx, "s1", "mild")
	require.Equal(t, triage.StatusSafe, r3.Status)
	assert.Contains(t, r3.Categories, "respiratory")
	assert.Equal(t, "Self-care and monitoring are reasonable; recheck if not improving.", r3.NextStep)
	assert.NotEmpty(t, r3.Disclaimer)
}

func TestSingleTurnSafe(t *testing.T) {
	svc := newTestService(nil)

	r := svc.HandleTurn(context.Background(), "s2",
		"I am 30 years old, mild sore throat and dry cough for 2 days, no fever")
	assert.Equal(t, triage.StatusSafe, r.Status)
	assert.Contains(t, r.Categories, "respiratory")
	assert.NotEmpty(t, r.Disclaimer)
}

func TestSlotsBeforeSymptoms(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	r1 := svc.HandleTurn(ctx, "s3", "35 years")
	require.Equal(t, triage.StatusAsk, r1.Status)
	assert.Contains(t, r1.Reply, "How severe")

	// Both required slots are now set but no symptoms exist yet, so
	// the turn still asks for more detail rather than going SAFE.
	r2 := svc.HandleTurn(ctx, "s3", "moderate")
	require.Equal(t, triage.StatusAsk, r2.Status)

	r3 := svc.HandleTurn(ctx, "s3", "Dry cough for 3 days, no fever")
	assert.Equal(t, triage.StatusSafe, r3.Status)
}

func TestEmergencyOnFirstTurn(t *testing.T) {
	svc := newTestService(nil)

	r := svc.HandleTurn(context.Background(), "e1", "Crushing chest pain and shortness of breath")
	assert.Equal(t, triage.StatusEmergency, r.Status)
	assert.Contains(t, r.NextStep, "112")
	assert.NotEmpty(t, r.Disclaimer)
}

func TestInfantFeverEmergency(t *testing.T) {
	svc := newTestService(nil)

	r := svc.HandleTurn(context.Background(), "e2", "My 2 month old has a fever")
	assert.Equal(t, triage.StatusEmergency, r.Status)
}

func TestUrgentGuardrail(t *testing.T) {
	svc := newTestService(nil)

	r := svc.HandleTurn(context.Background(), "u1", "Burning urination with fever and back pain")
	assert.Equal(t, triage.StatusUrgent, r.Status)
	assert.NotEmpty(t, r.Disclaimer)
}

func TestGuardrailPrecedenceOverCompleteSlots(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	svc.HandleTurn(ctx, "p1", "I am 40 years old, mild cough for 2 days")
	r := svc.HandleTurn(ctx, "p1", "Now I have crushing chest pain and shortness of breath")
	assert.Equal(t, triage.StatusEmergency, r.Status)
}

func TestWorstSeveritySecondaryNet(t *testing.T) {
	svc := newTestService(nil)

	// No guardrail phrase fires here; the reasoner's worst-severity
	// row escalates on its own.
	r := svc.HandleTurn(context.Background(), "w1",
		"I am 40 years old, very severe sore throat since yesterday")
	assert.Equal(t, triage.StatusUrgent, r.Status)
}

func TestSessionIsolation(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()
	msg := "Dry cough and sore throat for 2 days, no fever"

	a1 := svc.HandleTurn(ctx, "iso-a", msg)
	b1 := svc.HandleTurn(ctx, "iso-b", msg)
	require.Equal(t, triage.StatusAsk, a1.Status)
	require.Equal(t, triage.StatusAsk, b1.Status)

	// Answering session A must not advance session B.
	a2 := svc.HandleTurn(ctx, "iso-a", "35 years")
	assert.Contains(t, a2.Reply, "How severe")

	b2 := svc.HandleTurn(ctx, "iso-b", "hello again")
	assert.Equal(t, triage.StatusAsk, b2.Status)
	assert.Contains(t, b2.Reply, "How old")
}

func TestDisclaimerOnEveryStatus(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()

	results := []triage.TurnResult{
		svc.HandleTurn(ctx, "d1", "Dry cough for 2 days"),                                 // ASK
		svc.HandleTurn(ctx, "d2", "I am 30 years old, mild cough for 2 days, no fever"),   // SAFE
		svc.HandleTurn(ctx, "d3", "Burning urination with fever and back pain"),           // URGENT
		svc.HandleTurn(ctx, "d4", "Crushing chest pain and shortness of breath"),          // EMERGENCY
	}

	statuses := map[triage.Status]bool{}
	for _, r := range results {
		assert.NotEmpty(t, r.Disclaimer)
		statuses[r.Status] = true
	}
	assert.Len(t, statuses, 4)
}

func TestGateFailSafeNeverYieldsSafe(t *testing.T) {
	svc := newTestService(failingReviewer{})

	r := svc.HandleTurn(context.Background(), "fs1",
		"I am 30 years old, mild cough for 2 days, no fever")
	assert.Equal(t, triage.StatusAsk, r.Status)
	assert.NotEqual(t, triage.StatusSafe, r.Status)
	assert.NotEmpty(t, r.Disclaimer)
}

func TestRepeatedIdenticalTurnsConverge(t *testing.T) {
	svc := newTestService(nil)
	ctx := context.Background()
	msg := "I am 30 years old, mild cough for 2 days, no fever"

	r1 := svc.HandleTurn(ctx, "rep1", msg)
	r2 := svc.HandleTurn(ctx, "rep1", msg)
	assert.Equal(t, r1.Status, r2.Status)
	assert.Equal(t, r1.NextStep, r2.NextStep)
}

func TestMalformedMessageStillProducesResult(t *testing.T) {
	svc := newTestService(nil)

	r := svc.HandleTurn(context.Background(), "m1", "%%% ???? 0x00")
	assert.Equal(t, triage.StatusAsk, r.Status)
	assert.NotEmpty(t, r.Reply)
	assert.NotEmpty(t, r.Disclaimer)
}
