package triage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"triage-agent/internal/observability"
)

// Extractor turns raw patient text into structured entities. Must be
// total in effect: the orchestrator treats any error as "no new
// entities this turn".
// We define the capability interfaces here to decouple from the
// specific client implementations.
type Extractor interface {
	Extract(ctx context.Context, text string, priorSymptoms []string) (Extraction, error)
}

// Retriever returns ranked knowledge snippets for a symptom set. An
// error or timeout degrades to an empty result, never a failed turn.
type Retriever interface {
	Search(ctx context.Context, symptomTags []string, topK int) ([]CarePathSnippet, error)
}

// TurnRecorder persists a PII-safe summary of a completed turn.
// Fire-and-forget: it must not block or fail the turn.
type TurnRecorder interface {
	Record(ctx context.Context, summary TurnSummary) error
}

// EscalationReporter hands an escalated session over to a clinician
// channel. Also fire-and-forget.
type EscalationReporter interface {
	SendEscalationReport(ctx context.Context, sessionID string, slots SlotSet, result TurnResult, reason string) error
}

const retrievalTopK = 4

// Service runs one dialogue turn end to end.
type Service interface {
	HandleTurn(ctx context.Context, sessionID, message string) TurnResult
}

type service struct {
	store     SlotStore
	extractor Extractor
	retriever Retriever
	gate      *SafetyGate
	recorder  TurnRecorder
	reporter  EscalationReporter
	logger    *slog.Logger
}

// NewService wires the dialogue orchestrator. recorder and reporter
// may be nil; the turn pipeline itself has no optional parts.
func NewService(
	store SlotStore,
	extractor Extractor,
	retriever Retriever,
	gate *SafetyGate,
	recorder TurnRecorder,
	reporter EscalationReporter,
	logger *slog.Logger,
) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{
		store:     store,
		extractor: extractor,
		retriever: retriever,
		gate:      gate,
		recorder:  recorder,
		reporter:  reporter,
		logger:    logger,
	}
}

// turnState enumerates the per-turn state machine. No state is ever
// revisited within a turn; every turn terminates in stateResponded.
type turnState int

const (
	stateReceived turnState = iota
	stateGuarded
	stateEscalated
	stateMerging
	stateAsking
	stateReasoning
	stateGated
	stateResponded
)

// turn carries everything computed while a single turn moves through
// the state machine.
type turn struct {
	ctx       context.Context
	requestID string
	sessionID string
	message   string

	slots    SlotSet
	ext      Extraction
	flags    RedFlagVerdict
	snippets []CarePathSnippet
	draft    Draft
	verdict  SafetyVerdict

	escalated bool
	result    TurnResult
	started   time.Time
}

// transitions is the state transition table. New terminal outcomes are
// added here, not threaded through conditionals.
var transitions = map[turnState]func(*service, *turn) turnState{
	stateReceived:  (*service).stepReceived,
	stateGuarded:   (*service).stepGuarded,
	stateEscalated: (*service).stepEscalated,
	stateMerging:   (*service).stepMerging,
	stateAsking:    (*service).stepAsking,
	stateReasoning: (*service).stepReasoning,
	stateGated:     (*service).stepGated,
}

// HandleTurn processes one patient message under the session's lock
// and always produces a terminal TurnResult; collaborator failures
// degrade inside the pipeline rather than surfacing here.
func (s *service) HandleTurn(ctx context.Context, sessionID, message string) TurnResult {
	release := s.store.Acquire(sessionID)
	defer release()

	t := &turn{
		ctx:       ctx,
		requestID: uuid.NewString(),
		sessionID: sessionID,
		message:   message,
		slots:     s.store.Get(sessionID),
		started:   time.Now(),
	}

	s.logger.Info("triage_request",
		"request_id", t.requestID,
		"session_id", t.sessionID,
		"has_age", t.slots.Age != nil,
		"has_severity", t.slots.Severity != "",
		"has_duration", t.slots.DurationDays != nil,
	)

	for state := stateReceived; state != stateResponded; {
		state = transitions[state](s, t)
	}
	s.respond(t)
	return t.result
}

func (s *service) stepReceived(t *turn) turnState {
	ext, err := s.extractor.Extract(t.ctx, t.message, t.slots.SymptomTags())
	if err != nil {
		// Extraction degradation: no new entities this turn.
		s.logger.Warn("extraction_degraded", "request_id", t.requestID, "error", err.Error())
		observability.RecordError("extraction_degraded")
		ext = Extraction{}
	}
	t.ext = ext
	return stateGuarded
}

func (s *service) stepGuarded(t *turn) turnState {
	t.flags = EvaluateGuardrails(t.message, t.ext, t.slots)
	if t.flags.Tier != TierNone {
		return stateEscalated
	}
	return stateMerging
}

// stepEscalated fixes the status to the red-flag tier. Guardrails
// bypass merging, reasoning and the gate's content checks; the
// disclaimer is still attached.
func (s *service) stepEscalated(t *turn) turnState {
	t.escalated = true
	t.result = TurnResult{
		SessionID:  t.sessionID,
		Status:     t.flags.Tier.Status(),
		Reply:      t.flags.Reason,
		Categories: []string{},
		NextStep:   EscalationNextStep(t.flags.Tier),
		Disclaimer: Disclaimer,
	}
	return stateResponded
}

func (s *service) stepMerging(t *turn) turnState {
	t.slots = Merge(t.slots, t.ext)
	s.store.Commit(t.sessionID, t.slots)
	if !IsComplete(t.slots) {
		return stateAsking
	}
	return stateReasoning
}

func (s *service) stepAsking(t *turn) turnState {
	slot := NextMissing(t.slots)
	t.slots.Asked[slot] = true
	s.store.Commit(t.sessionID, t.slots)

	t.draft = Draft{
		Status:            StatusAsk,
		ReplyText:         FollowUpQuestion(slot),
		Categories:        []string{},
		Rationale:         "missing_required_slots",
		DisclaimerPresent: true,
	}
	// An ASK prompt still goes through the gate so the disclaimer
	// invariant is checked uniformly.
	return stateGated
}

func (s *service) stepReasoning(t *turn) turnState {
	snippets, err := s.retriever.Search(t.ctx, t.slots.SymptomTags(), retrievalTopK)
	if err != nil {
		// Retrieval degradation: the reasoner falls back to ASK.
		s.logger.Warn("retrieval_degraded", "request_id", t.requestID, "error", err.Error())
		observability.RecordError("retrieval_degraded")
		snippets = nil
	}
	t.snippets = snippets
	t.draft = ComposeDraft(t.slots, t.snippets)
	return stateGated
}

func (s *service) stepGated(t *turn) turnState {
	t.verdict = s.gate.Review(t.ctx, t.draft, SafetyContext{
		RedFlagsSeen:  t.flags.Tier != TierNone,
		RedFlagTier:   t.flags.Tier,
		AskedSlots:    t.slots.AskedSlots(),
		RetrievalHits: len(t.snippets),
	})
	return stateResponded
}

// respond applies the safety verdict (escalated turns arrive with
// their result already fixed), then emits metrics, the structured
// log line, the turn summary, and any escalation handoff.
func (s *service) respond(t *turn) {
	if !t.escalated {
		t.result = s.applyVerdict(t)
	}

	elapsed := float64(time.Since(t.started).Microseconds()) / 1000.0
	observability.ObserveLatency(elapsed)
	observability.RecordStatus(string(t.result.Status))

	safetyAction := "N/A"
	if !t.escalated {
		safetyAction = string(t.verdict.Action)
		observability.RecordSafety(safetyAction)
	}
	if t.verdict.Reason == ReasonSelfCheckUnavailable {
		observability.RecordError("safety_check_failure")
	}

	s.logger.Info("triage_response",
		"request_id", t.requestID,
		"session_id", t.sessionID,
		"status", string(t.result.Status),
		"safety_action", safetyAction,
		"elapsed_ms", elapsed,
		"categories", t.result.Categories,
	)

	if s.recorder != nil {
		summary := TurnSummary{
			RequestID:    t.requestID,
			SessionID:    t.sessionID,
			Status:       t.result.Status,
			SafetyAction: safetyAction,
			ElapsedMS:    elapsed,
			AskedSlots:   t.slots.AskedSlots(),
			Categories:   t.result.Categories,
			CreatedAt:    time.Now().UTC(),
		}
		go func() {
			if err := s.recorder.Record(context.Background(), summary); err != nil {
				s.logger.Warn("turn_summary_failed", "request_id", summary.RequestID, "error", err.Error())
			}
		}()
	}

	if s.reporter != nil && (t.result.Status == StatusEmergency || t.result.Status == StatusUrgent) {
		slots, result, reason := t.slots.Clone(), t.result, t.flags.Reason
		go func() {
			if err := s.reporter.SendEscalationReport(context.Background(), result.SessionID, slots, result, reason); err != nil {
				s.logger.Warn("escalation_report_failed", "session_id", result.SessionID, "error", err.Error())
			}
		}()
	}
}

// applyVerdict is the GATED -> RESPONDED transition: a REWRITE is a
// terminal textual substitution, a BLOCK forces the status to ASK or
// to the red-flag tier already computed by the guardrails.
func (s *service) applyVerdict(t *turn) TurnResult {
	result := TurnResult{
		SessionID:  t.sessionID,
		Status:     t.draft.Status,
		Reply:      t.draft.ReplyText,
		Categories: t.draft.Categories,
		NextStep:   t.draft.NextStep,
		Disclaimer: Disclaimer,
	}

	switch t.verdict.Action {
	case SafetyRewrite:
		if t.verdict.Text != "" {
			result.Reply = t.verdict.Text
		}
	case SafetyBlock:
		if t.flags.Tier != TierNone {
			result.Status = t.flags.Tier.Status()
			result.NextStep = EscalationNextStep(t.flags.Tier)
		} else {
			result.Status = StatusAsk
			result.NextStep = ""
		}
		result.Reply = t.verdict.Text
		result.Categories = []string{}
	}
	if result.Categories == nil {
		result.Categories = []string{}
	}
	return result
}
