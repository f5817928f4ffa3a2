package triage

import (
	"context"
	"strings"
	"time"
)

// Reviewer is the optional external self-check collaborator (an LLM in
// production). It runs after the deterministic policy checks and may
// keep or escalate their outcome, never soften it.
type Reviewer interface {
	Review(ctx context.Context, draft Draft, sctx SafetyContext) (SafetyVerdict, error)
}

// ReasonSelfCheckUnavailable tags the fail-safe verdict produced when
// the reviewer collaborator errors or misses its deadline.
const ReasonSelfCheckUnavailable = "self_check_unavailable"

const blockedReply = "For safety, I need more information before I can guide you. Can you describe your symptoms and duration?"

const safeRewriteReply = "Based on what you shared, this can be due to several common causes."

const medsBlockReply = "For safety, I can't provide medication instructions. Please see a clinician."

// forbiddenDiagnostic are absolute-claim patterns a reply must never
// contain.
var forbiddenDiagnostic = []string{
	"you have ", "this is definitely", "diagnosis is", "you are suffering from",
}

// forbiddenMeds catch dosing specifics and named prescription drugs.
var forbiddenMeds = []string{
	"antibiotic", "amoxicillin", "penicillin", "ibuprofen 800",
	"prescription", "mg ", "dosage",
}

// certaintyMarkers are absolute-certainty words that overstate what a
// triage reply can know.
var certaintyMarkers = []string{
	"definitely", "guaranteed", "certainly", "without a doubt",
}

// policyCheck is one of the gate's independent checks. Run returns nil
// on pass, otherwise the verdict the failure demands.
type policyCheck struct {
	Name string
	Run  func(Draft, SafetyContext) *SafetyVerdict
}

// policyChecks run in order; BLOCK-producing checks come first so an
// unfixable failure is never masked by a paraphrase-repairable one.
var policyChecks = []policyCheck{
	{
		Name: "no_unsafe_instruction",
		Run: func(d Draft, _ SafetyContext) *SafetyVerdict {
			text := strings.ToLower(d.ReplyText + " " + d.NextStep)
			for _, kw := range forbiddenMeds {
				if strings.Contains(text, kw) {
					return &SafetyVerdict{Action: SafetyBlock, Text: medsBlockReply, Reason: "unsafe_instruction"}
				}
			}
			return nil
		},
	},
	{
		Name: "red_flag_consistency",
		Run: func(d Draft, sctx SafetyContext) *SafetyVerdict {
			if sctx.RedFlagsSeen && d.Status != StatusUrgent && d.Status != StatusEmergency {
				return &SafetyVerdict{Action: SafetyBlock, Text: blockedReply, Reason: "red_flag_inconsistency"}
			}
			return nil
		},
	},
	{
		Name: "non_diagnostic_language",
		Run: func(d Draft, _ SafetyContext) *SafetyVerdict {
			text := strings.ToLower(d.ReplyText)
			for _, kw := range forbiddenDiagnostic {
				if strings.Contains(text, kw) {
					return &SafetyVerdict{Action: SafetyRewrite, Text: safeRewriteReply, Reason: "diagnostic_claim"}
				}
			}
			return nil
		},
	},
	{
		Name: "no_hallucinated_certainty",
		Run: func(d Draft, _ SafetyContext) *SafetyVerdict {
			text := strings.ToLower(d.ReplyText)
			for _, kw := range certaintyMarkers {
				if strings.Contains(text, kw) {
					return &SafetyVerdict{Action: SafetyRewrite, Text: safeRewriteReply, Reason: "hallucinated_certainty"}
				}
			}
			return nil
		},
	},
	{
		Name: "disclaimer_present",
		Run: func(d Draft, _ SafetyContext) *SafetyVerdict {
			if !d.DisclaimerPresent {
				return &SafetyVerdict{Action: SafetyRewrite, Reason: "missing_disclaimer"}
			}
			return nil
		},
	},
}

// SafetyGate reviews a draft before it reaches the patient. The
// deterministic checks are local and total; only the optional reviewer
// is allowed to fail, and its failure converts to a conservative BLOCK
// rather than an error to the caller.
type SafetyGate struct {
	reviewer Reviewer
	timeout  time.Duration
}

// NewSafetyGate builds a gate. reviewer may be nil to run the
// deterministic checks only; timeout bounds each reviewer call.
func NewSafetyGate(reviewer Reviewer, timeout time.Duration) *SafetyGate {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &SafetyGate{reviewer: reviewer, timeout: timeout}
}

// Review runs the policy checklist and, when all checks pass, consults
// the reviewer. It never returns an error; a REWRITE is terminal for
// the turn, never re-checked.
func (g *SafetyGate) Review(ctx context.Context, draft Draft, sctx SafetyContext) SafetyVerdict {
	for _, check := range policyChecks {
		if v := check.Run(draft, sctx); v != nil {
			return *v
		}
	}

	if g.reviewer == nil {
		return SafetyVerdict{Action: SafetyApprove}
	}

	rctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	verdict, err := g.reviewer.Review(rctx, draft, sctx)
	if err != nil {
		return g.failSafe()
	}
	switch verdict.Action {
	case SafetyApprove:
		return SafetyVerdict{Action: SafetyApprove}
	case SafetyRewrite, SafetyBlock:
		if verdict.Text == "" {
			verdict.Text = blockedReply
		}
		return verdict
	default:
		return g.failSafe()
	}
}

func (g *SafetyGate) failSafe() SafetyVerdict {
	return SafetyVerdict{
		Action: SafetyBlock,
		Text:   blockedReply,
		Reason: ReasonSelfCheckUnavailable,
	}
}
