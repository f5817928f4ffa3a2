package triage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReviewer struct {
	verdict SafetyVerdict
	err     error
	calls   int
}

func (s *stubReviewer) Review(context.Context, Draft, SafetyContext) (SafetyVerdict, error) {
	s.calls++
	return s.verdict, s.err
}

func safeDraft() Draft {
	return Draft{
		Status:            StatusSafe,
		ReplyText:         "Based on what you shared, simple self-care may help.",
		NextStep:          "Rest, fluids, and monitoring.",
		Categories:        []string{"respiratory"},
		DisclaimerPresent: true,
	}
}

func TestGateApprovesCleanDraft(t *testing.T) {
	gate := NewSafetyGate(nil, time.Second)
	v := gate.Review(context.Background(), safeDraft(), SafetyContext{})
	assert.Equal(t, SafetyApprove, v.Action)
}

func TestGateRewritesMissingDisclaimer(t *testing.T) {
	d := safeDraft()
	d.DisclaimerPresent = false

	gate := NewSafetyGate(nil, time.Second)
	v := gate.Review(context.Background(), d, SafetyContext{})
	assert.Equal(t, SafetyRewrite, v.Action)
	assert.Equal(t, "missing_disclaimer", v.Reason)
}

func TestGateBlocksMedicationInstructions(t *testing.T) {
	d := safeDraft()
	d.NextStep = "Take amoxicillin 500 mg tonight."

	gate := NewSafetyGate(nil, time.Second)
	v := gate.Review(context.Background(), d, SafetyContext{})
	assert.Equal(t, SafetyBlock, v.Action)
	assert.Equal(t, "unsafe_instruction", v.Reason)
	assert.NotEmpty(t, v.Text)
}

func TestGateRewritesDiagnosticClaim(t *testing.T) {
	d := safeDraft()
	d.ReplyText = "You have pneumonia."

	gate := NewSafetyGate(nil, time.Second)
	v := gate.Review(context.Background(), d, SafetyContext{})
	assert.Equal(t, SafetyRewrite, v.Action)
	assert.Equal(t, "diagnostic_claim", v.Reason)
	assert.Contains(t, v.Text, "Based on what you shared")
}

func TestGateRewritesCertaintyMarkers(t *testing.T) {
	d := safeDraft()
	d.ReplyText = "This is definitely just a cold, guaranteed."

	gate := NewSafetyGate(nil, time.Second)
	v := gate.Review(context.Background(), d, SafetyContext{})
	assert.Equal(t, SafetyRewrite, v.Action)
}

func TestGateBlocksRedFlagInconsistency(t *testing.T) {
	gate := NewSafetyGate(nil, time.Second)
	v := gate.Review(context.Background(), safeDraft(), SafetyContext{
		RedFlagsSeen: true,
		RedFlagTier:  TierEmergency,
	})
	assert.Equal(t, SafetyBlock, v.Action)
	assert.Equal(t, "red_flag_inconsistency", v.Reason)
}

func TestGateRedFlagConsistentEscalationPasses(t *testing.T) {
	d := safeDraft()
	d.Status = StatusEmergency

	gate := NewSafetyGate(nil, time.Second)
	v := gate.Review(context.Background(), d, SafetyContext{RedFlagsSeen: true, RedFlagTier: TierEmergency})
	assert.Equal(t, SafetyApprove, v.Action)
}

func TestGateBlockDominatesRewrite(t *testing.T) {
	d := safeDraft()
	d.ReplyText = "You have an infection, take an antibiotic."
	d.DisclaimerPresent = false

	gate := NewSafetyGate(nil, time.Second)
	v := gate.Review(context.Background(), d, SafetyContext{})
	// The unfixable failure wins over the paraphrase-repairable ones.
	assert.Equal(t, SafetyBlock, v.Action)
	assert.Equal(t, "unsafe_instruction", v.Reason)
}

func TestGateFailSafeOnReviewerError(t *testing.T) {
	reviewer := &stubReviewer{err: context.DeadlineExceeded}
	gate := NewSafetyGate(reviewer, 10*time.Millisecond)

	v := gate.Review(context.Background(), safeDraft(), SafetyContext{})
	require.Equal(t, SafetyBlock, v.Action)
	assert.Equal(t, ReasonSelfCheckUnavailable, v.Reason)
	assert.NotEmpty(t, v.Text)
	assert.Equal(t, 1, reviewer.calls)
}

func TestGateFailSafeOnInvalidReviewerAction(t *testing.T) {
	reviewer := &stubReviewer{verdict: SafetyVerdict{Action: "MAYBE"}}
	gate := NewSafetyGate(reviewer, time.Second)

	v := gate.Review(context.Background(), safeDraft(), SafetyContext{})
	assert.Equal(t, SafetyBlock, v.Action)
	assert.Equal(t, ReasonSelfCheckUnavailable, v.Reason)
}

func TestGateHonorsReviewerEscalation(t *testing.T) {
	reviewer := &stubReviewer{verdict: SafetyVerdict{Action: SafetyBlock, Reason: "risky_wording"}}
	gate := NewSafetyGate(reviewer, time.Second)

	v := gate.Review(context.Background(), safeDraft(), SafetyContext{})
	assert.Equal(t, SafetyBlock, v.Action)
	assert.Equal(t, "risky_wording", v.Reason)
	assert.NotEmpty(t, v.Text)
}

func TestGateSkipsReviewerWhenChecksFail(t *testing.T) {
	reviewer := &stubReviewer{verdict: SafetyVerdict{Action: SafetyApprove}}
	gate := NewSafetyGate(reviewer, time.Second)

	d := safeDraft()
	d.ReplyText = "You have pneumonia."
	v := gate.Review(context.Background(), d, SafetyContext{})

	assert.Equal(t, SafetyRewrite, v.Action)
	assert.Equal(t, 0, reviewer.calls)
}
