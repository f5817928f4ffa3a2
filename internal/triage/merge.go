package triage

// Merge folds a turn's extraction into the session slots. Last write
// wins per slot; symptom tags are a monotonic union. Applying the same
// extraction twice yields the same SlotSet as applying it once, which
// is what lets slot filling converge regardless of turn order.
func Merge(current SlotSet, ext Extraction) SlotSet {
	out := current.Clone()
	if ext.Age != nil {
		age := *ext.Age
		out.Age = &age
	}
	if ext.Severity != "" {
		out.Severity = ext.Severity
	}
	if ext.DurationDays != nil {
		d := *ext.DurationDays
		out.DurationDays = &d
	}
	for _, tag := range ext.Symptoms {
		if tag != "" {
			out.Symptoms[tag] = true
		}
	}
	return out
}

// IsComplete reports whether enough information exists to finalize
// guidance. The strict age/severity policy: duration is desired but
// not blocking.
func IsComplete(s SlotSet) bool {
	return s.Age != nil && s.Severity != ""
}

// NextMissing returns the highest-priority unset required slot, age
// before severity, so the next follow-up question is deterministic.
// Empty string when nothing required is missing.
func NextMissing(s SlotSet) string {
	if s.Age == nil {
		return SlotAge
	}
	if s.Severity == "" {
		return SlotSeverity
	}
	return ""
}

// followUpQuestions maps a missing slot to the question asked for it.
var followUpQuestions = map[string]string{
	SlotAge:      "How old are you?",
	SlotSeverity: "How severe is it (mild, moderate, or severe)?",
	SlotDuration: "How long has this been going on (e.g., hours, days, weeks)?",
}

// FollowUpQuestion returns the wording used to ask for a slot.
func FollowUpQuestion(slot string) string {
	if q, ok := followUpQuestions[slot]; ok {
		return q
	}
	return "Could you tell me a bit more about your symptoms?"
}
