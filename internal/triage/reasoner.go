package triage

const maxCategories = 6

// nextStepRule maps a severity/duration combination to an outcome.
// Rows are evaluated in order; the first applicable row wins. The
// worst row is a conservative secondary safety net: it escalates even
// when no guardrail fired.
type nextStepRule struct {
	Severity    Severity
	MaxDuration float64 // applies only when >= 0 and duration is known
	Status      Status
	NextStep    string
	Rationale   string
}

var nextStepRules = []nextStepRule{
	{SeverityWorst, -1, StatusUrgent, "Seek urgent care or same-day GP evaluation.", "worst_severity_net"},
	{SeveritySevere, -1, StatusSafe, "Seek urgent care within 24 hours.", "safe_guidance"},
	{SeverityModerate, -1, StatusSafe, "Arrange a GP/primary care appointment in the next 24-48 hours.", "safe_guidance"},
	{SeverityMild, 3, StatusSafe, "Self-care and monitoring are reasonable; recheck if not improving.", "safe_guidance"},
	{SeverityMild, -1, StatusSafe, "Arrange a GP/primary care appointment.", "safe_guidance"},
}

// toneTemplates pick the reply wording by dominant category. All
// entries are non-diagnostic by construction ("can often", "commonly",
// never "you have").
var toneTemplates = map[string]string{
	"urinary":     "Your urinary symptoms can often be monitored initially if mild and short-lived.",
	"respiratory": "Upper-respiratory symptoms are commonly mild and self-limited if no red flags.",
}

const defaultReplyTemplate = "Based on what you shared, this sounds suitable for initial self-care and monitoring."

const askForDetailReply = "I need a bit more detail to guide you safely. Could you describe your symptoms?"

// ComposeDraft turns a completed SlotSet plus retrieved snippets into
// a draft outcome for the safety gate. With zero snippets it returns
// an ASK draft rather than SAFE guidance backed by no evidence.
func ComposeDraft(slots SlotSet, snippets []CarePathSnippet) Draft {
	if len(snippets) == 0 {
		return Draft{
			Status:            StatusAsk,
			ReplyText:         askForDetailReply,
			Categories:        []string{},
			Rationale:         "no_supporting_knowledge",
			DisclaimerPresent: true,
		}
	}

	categories := collectCategories(slots, snippets)
	status, nextStep, rationale := applyNextStepRules(slots)

	reply := defaultReplyTemplate
	for _, cat := range categories {
		if t, ok := toneTemplates[cat]; ok {
			reply = t
			break
		}
	}
	if g := snippets[0].Guidance; g != "" {
		reply = reply + " " + g
	}

	return Draft{
		Status:            status,
		ReplyText:         reply,
		Categories:        categories,
		NextStep:          nextStep,
		Rationale:         rationale,
		DisclaimerPresent: true,
	}
}

// collectCategories unions the tags of snippets whose tag set
// intersects the accumulated symptoms; ties are surfaced, not broken.
// Snippet topics count as tags, matching how the knowledge base is
// ingested. When no snippet intersects (text-based retrieval without
// canonical tags), all retrieved snippets contribute.
func collectCategories(slots SlotSet, snippets []CarePathSnippet) []string {
	matched := snippets[:0:0]
	for _, sn := range snippets {
		for _, tag := range sn.Tags {
			if slots.Symptoms[tag] {
				matched = append(matched, sn)
				break
			}
		}
	}
	if len(matched) == 0 {
		matched = snippets
	}

	seen := map[string]bool{}
	out := []string{}
	add := func(tag string) {
		if tag != "" && !seen[tag] && len(out) < maxCategories {
			seen[tag] = true
			out = append(out, tag)
		}
	}
	for _, sn := range matched {
		for _, tag := range sn.Tags {
			add(tag)
		}
		add(sn.Topic)
	}
	return out
}

func applyNextStepRules(slots SlotSet) (Status, string, string) {
	for _, rule := range nextStepRules {
		if rule.Severity != slots.Severity {
			continue
		}
		if rule.MaxDuration >= 0 {
			if slots.DurationDays == nil || *slots.DurationDays > rule.MaxDuration {
				continue
			}
		}
		return rule.Status, rule.NextStep, rule.Rationale
	}
	// Severity is set whenever the slots are complete, so this is only
	// reachable with an unknown enum value; stay conservative.
	return StatusSafe, "Arrange a GP/primary care appointment.", "safe_guidance"
}
