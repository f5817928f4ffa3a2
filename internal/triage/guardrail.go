package triage

import "strings"

// infantFeverMonths is the age threshold below which any fever is an
// emergency.
const infantFeverMonths = 3

// guardInput is everything a rule predicate may look at: the raw
// lowercased utterance, this turn's extraction, and the committed
// session slots (for contextual rules such as infant age given in an
// earlier turn).
type guardInput struct {
	text  string
	ext   Extraction
	slots SlotSet
}

func (in guardInput) ageMonths() (int, bool) {
	if in.ext.Age != nil {
		return in.ext.Age.InMonths(), true
	}
	if in.slots.Age != nil {
		return in.slots.Age.InMonths(), true
	}
	return 0, false
}

// guardRule is one declarative red-flag record. Rules are evaluated in
// order, most severe first; adding a rule never touches evaluator
// control flow.
type guardRule struct {
	ID     string
	Tier   Tier
	Reason string
	Match  func(guardInput) bool
}

// negationCues invalidate a keyword hit when they appear just before
// it ("no chest pain", "denies fever").
var negationCues = map[string]bool{
	"no": true, "not": true, "without": true,
	"denies": true, "denied": true, "never": true,
}

// mentions reports a non-negated occurrence of kw in text.
func mentions(text, kw string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], kw)
		if i < 0 {
			return false
		}
		i += start
		if !negatedAt(text, i) {
			return true
		}
		start = i + len(kw)
	}
}

func negatedAt(text string, idx int) bool {
	prefix := strings.Fields(text[:idx])
	from := len(prefix) - 3
	if from < 0 {
		from = 0
	}
	for _, tok := range prefix[from:] {
		if negationCues[strings.Trim(tok, ",.;:!?")] {
			return true
		}
	}
	return false
}

// kwAny matches when any keyword has a non-negated mention.
func kwAny(keywords ...string) func(guardInput) bool {
	return func(in guardInput) bool {
		for _, kw := range keywords {
			if mentions(in.text, kw) {
				return true
			}
		}
		return false
	}
}

// kwAll matches when every group has at least one non-negated mention.
func kwAll(groups ...[]string) func(guardInput) bool {
	return func(in guardInput) bool {
		for _, group := range groups {
			hit := false
			for _, kw := range group {
				if mentions(in.text, kw) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
		}
		return true
	}
}

var feverWords = []string{"fever", "temperature"}

var breathingWords = []string{
	"shortness of breath", "short of breath", "trouble breathing",
	"can't breathe", "cant breathe", "difficulty breathing",
}

// guardRules is the ordered red-flag table, emergencies first. First
// match fixes the tier; further matches at the same tier are reported
// as additional rule IDs.
var guardRules = []guardRule{
	{
		ID:     "infant_fever",
		Tier:   TierEmergency,
		Reason: "Fever in an infant under 3 months is an emergency.",
		Match: func(in guardInput) bool {
			months, ok := in.ageMonths()
			return ok && months < infantFeverMonths && kwAny(feverWords...)(in)
		},
	},
	{
		ID:     "pregnancy_complication",
		Tier:   TierEmergency,
		Reason: "Pregnancy with bleeding or severe abdominal pain is an emergency.",
		Match: func(in guardInput) bool {
			if !in.ext.Pregnant && !mentions(in.text, "pregnan") {
				return false
			}
			return kwAny("bleeding", "severe abdominal pain")(in)
		},
	},
	{
		ID:     "cardiorespiratory",
		Tier:   TierEmergency,
		Reason: "Chest pain with shortness of breath can be an emergency.",
		Match: kwAll(
			[]string{"chest pain", "pressure in chest", "crushing"},
			breathingWords,
		),
	},
	{
		ID:     "anaphylaxis",
		Tier:   TierEmergency,
		Reason: "Possible severe allergic reaction.",
		Match: kwAll(
			[]string{"hives", "swelling", "swollen tongue"},
			breathingWords,
		),
	},
	{
		ID:     "neuro_headache",
		Tier:   TierEmergency,
		Reason: "A sudden severe (worst) headache can be an emergency.",
		Match:  kwAny("worst headache", "thunderclap"),
	},
	{
		ID:     "fever_stiff_neck",
		Tier:   TierEmergency,
		Reason: "Fever with a stiff neck can be an emergency.",
		Match:  kwAll(feverWords, []string{"stiff neck"}),
	},
	{
		ID:     "emergency_marker",
		Tier:   TierEmergency,
		Reason: "A red-flag symptom was detected.",
		Match: kwAny(
			"chest pain", "pressure in chest",
			"shortness of breath", "can't breathe", "cant breathe",
			"severe bleeding", "fainted", "pass out", "passed out",
			"stroke", "weakness one side", "weakness on one side",
			"numbness one side", "numbness on one side",
			"seizure", "anaphylaxis", "swollen tongue",
			"suicidal", "suicide",
			"overdose", "too many pills", "poisoning", "poisoned",
			"blacked out", "unconscious",
		),
	},
	{
		ID:     "uti_systemic",
		Tier:   TierUrgent,
		Reason: "Urinary symptoms with fever or back pain may indicate kidney involvement.",
		Match: kwAll(
			[]string{"urine", "urination", "peeing", "burning", "dysuria"},
			[]string{"fever", "back pain", "flank"},
		),
	},
	{
		ID:     "urgent_marker",
		Tier:   TierUrgent,
		Reason: "An urgent symptom was detected.",
		Match: kwAny(
			"stiff neck", "pregnant bleeding", "flank pain",
			"blood in urine", "cannot keep fluids",
		),
	},
}

// EvaluateGuardrails runs the red-flag table over one utterance. Pure
// and total: exactly one tier for any input, no collaborators, never
// panics. Downstream components may escalate further but never
// de-escalate the returned tier.
func EvaluateGuardrails(text string, ext Extraction, slots SlotSet) RedFlagVerdict {
	in := guardInput{text: strings.ToLower(text), ext: ext, slots: slots}

	verdict := RedFlagVerdict{Tier: TierNone}
	for _, rule := range guardRules {
		if !rule.Match(in) {
			continue
		}
		if verdict.Tier == TierNone {
			verdict.Tier = rule.Tier
			verdict.Reason = rule.Reason
		}
		if rule.Tier == verdict.Tier {
			verdict.RuleIDs = append(verdict.RuleIDs, rule.ID)
		}
	}
	return verdict
}

// escalationNextSteps is the fixed instruction attached to an
// escalated turn.
var escalationNextSteps = map[Tier]string{
	TierEmergency: "Call 112 / go to the emergency department now.",
	TierUrgent:    "Seek urgent care or same-day GP evaluation.",
}

// EscalationNextStep returns the next-step wording for a tier.
func EscalationNextStep(t Tier) string {
	return escalationNextSteps[t]
}
