package triage

import (
	"sort"
	"time"
)

// Status is the externally visible outcome of a turn.
type Status string

const (
	StatusAsk       Status = "ASK"
	StatusSafe      Status = "SAFE"
	StatusUrgent    Status = "URGENT"
	StatusEmergency Status = "EMERGENCY"
)

// Tier is the guardrail escalation level. Ordered so that a higher
// tier always dominates a lower one.
type Tier int

const (
	TierNone Tier = iota
	TierUrgent
	TierEmergency
)

// Status maps a non-NONE tier to its turn status.
func (t Tier) Status() Status {
	switch t {
	case TierEmergency:
		return StatusEmergency
	case TierUrgent:
		return StatusUrgent
	default:
		return StatusAsk
	}
}

func (t Tier) String() string {
	switch t {
	case TierEmergency:
		return "EMERGENCY"
	case TierUrgent:
		return "URGENT"
	default:
		return "NONE"
	}
}

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityWorst    Severity = "worst"
)

type AgeUnit string

const (
	AgeUnitMonths AgeUnit = "months"
	AgeUnitYears  AgeUnit = "years"
)

// AgeValue carries the stated age together with its unit so that
// infant rules (months) and adult rules (years) read the same slot.
type AgeValue struct {
	Value int     `json:"value"`
	Unit  AgeUnit `json:"unit"`
}

// InMonths normalizes the age for threshold rules.
func (a AgeValue) InMonths() int {
	if a.Unit == AgeUnitYears {
		return a.Value * 12
	}
	return a.Value
}

// Slot names, also used as "asked" markers and in follow-up questions.
const (
	SlotAge      = "age"
	SlotSeverity = "severity"
	SlotDuration = "duration"
)

// SlotSet is the per-session persistent state. A slot value, once set,
// is only replaced by a later turn's explicit value for the same slot;
// symptoms accumulate monotonically and are never removed.
type SlotSet struct {
	Age          *AgeValue       `json:"age,omitempty"`
	Severity     Severity        `json:"severity,omitempty"`
	DurationDays *float64        `json:"duration_days,omitempty"`
	Symptoms     map[string]bool `json:"symptoms,omitempty"`
	Asked        map[string]bool `json:"asked,omitempty"`
}

func NewSlotSet() SlotSet {
	return SlotSet{
		Symptoms: map[string]bool{},
		Asked:    map[string]bool{},
	}
}

// Clone returns a deep copy so callers can mutate without aliasing
// the committed session state.
func (s SlotSet) Clone() SlotSet {
	out := s
	if s.Age != nil {
		age := *s.Age
		out.Age = &age
	}
	if s.DurationDays != nil {
		d := *s.DurationDays
		out.DurationDays = &d
	}
	out.Symptoms = make(map[string]bool, len(s.Symptoms))
	for k, v := range s.Symptoms {
		out.Symptoms[k] = v
	}
	out.Asked = make(map[string]bool, len(s.Asked))
	for k, v := range s.Asked {
		out.Asked[k] = v
	}
	return out
}

// SymptomTags returns the accumulated symptoms in stable order.
func (s SlotSet) SymptomTags() []string {
	tags := make([]string, 0, len(s.Symptoms))
	for t := range s.Symptoms {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// AskedSlots returns the already-asked slot names in stable order.
func (s SlotSet) AskedSlots() []string {
	names := make([]string, 0, len(s.Asked))
	for n := range s.Asked {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Extraction is the structured view of one utterance as produced by
// the entity extractor. An empty Extraction means "no new information
// this turn", never an error state.
type Extraction struct {
	Age          *AgeValue
	Severity     Severity
	DurationDays *float64
	Symptoms     []string
	Pregnant     bool
}

// RedFlagVerdict is computed fresh every turn; new text can introduce
// new flags, so it is never cached across turns.
type RedFlagVerdict struct {
	Tier    Tier
	RuleIDs []string
	Reason  string
}

// CarePathSnippet is an immutable knowledge unit supplied by the
// retrieval collaborator.
type CarePathSnippet struct {
	ID       string
	Topic    string
	Tags     []string
	Guidance string
	NextStep string
}

// Draft is the transient candidate reply produced by the reasoner and
// reviewed by the safety gate. Never persisted.
type Draft struct {
	Status            Status
	ReplyText         string
	Categories        []string
	NextStep          string
	Rationale         string
	DisclaimerPresent bool
}

type SafetyAction string

const (
	SafetyApprove SafetyAction = "APPROVE"
	SafetyRewrite SafetyAction = "REWRITE"
	SafetyBlock   SafetyAction = "BLOCK"
)

// SafetyVerdict determines the final reply. Text is the replacement
// wording for REWRITE/BLOCK, empty otherwise.
type SafetyVerdict struct {
	Action SafetyAction
	Text   string
	Reason string
}

// SafetyContext is the gate's view of the turn beyond the draft itself.
type SafetyContext struct {
	RedFlagsSeen  bool
	RedFlagTier   Tier
	AskedSlots    []string
	RetrievalHits int
}

// Disclaimer is attached to every reply, across all four statuses.
const Disclaimer = "Educational guidance only; not a diagnosis; not for emergencies. If this is an emergency, call 112."

// TurnResult is the only externally visible artifact of a turn.
type TurnResult struct {
	SessionID  string   `json:"session_id"`
	Status     Status   `json:"status"`
	Reply      string   `json:"reply"`
	Categories []string `json:"categories"`
	NextStep   string   `json:"next_step"`
	Disclaimer string   `json:"disclaimer"`
}

// TurnSummary is the PII-safe record persisted per completed turn.
// It deliberately excludes raw patient text.
type TurnSummary struct {
	RequestID    string    `json:"request_id" db:"request_id"`
	SessionID    string    `json:"session_id" db:"session_id"`
	Status       Status    `json:"status" db:"status"`
	SafetyAction string    `json:"safety_action" db:"safety_action"`
	ElapsedMS    float64   `json:"elapsed_ms" db:"elapsed_ms"`
	AskedSlots   []string  `json:"asked_slots" db:"asked_slots"`
	Categories   []string  `json:"categories" db:"categories"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
