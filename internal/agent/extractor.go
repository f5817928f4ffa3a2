package agent

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"triage-agent/internal/triage"
)

// RuleExtractor is the default entity extractor: deterministic
// regex/keyword parsing with light negation handling. It is total —
// no matches yields an empty extraction, never an error.
type RuleExtractor struct{}

func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

var (
	ageYearsRe  = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:years?|yrs?|yo)\b`)
	ageMonthsRe = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:months?|mos?)(?:\s+old)?\b`)
	pregnancyRe = regexp.MustCompile(`(?i)\bpregnan\w*\b`)

	durHoursRe       = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:hours?|hrs?|h)\b`)
	durDaysRe        = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:days?|d)\b`)
	durWeeksRe       = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(?:weeks?|wks?|w)\b`)
	sinceYesterdayRe = regexp.MustCompile(`(?i)\bsince\s+yesterday\b`)
	todayRe          = regexp.MustCompile(`(?i)\b(?:today|for a few hours)\b`)
	fewDaysRe        = regexp.MustCompile(`(?i)\b(?:a\s*few\s*days|couple of days)\b`)
)

// severityCanon normalizes free-text severity wording to the
// four-value enum.
var severityCanon = map[string]triage.Severity{
	"very severe": triage.SeverityWorst,
	"worst":       triage.SeverityWorst,
	"severe":      triage.SeveritySevere,
	"strong":      triage.SeveritySevere,
	"intense":     triage.SeveritySevere,
	"moderate":    triage.SeverityModerate,
	"medium":      triage.SeverityModerate,
	"so-so":       triage.SeverityModerate,
	"mild":        triage.SeverityMild,
	"light":       triage.SeverityMild,
	"not bad":     triage.SeverityMild,
}

// Longest alternatives first so "very severe" wins over "severe".
var severityRe = regexp.MustCompile(`(?i)\b(very severe|not bad|moderate|intense|medium|severe|strong|worst|so-so|light|mild)\b`)

// symptomLexicon maps surface keywords to canonical symptom tags. The
// tags double as the retrieval vocabulary.
var symptomLexicon = []struct {
	Keyword string
	Tag     string
}{
	{"cough", "cough"},
	{"fever", "fever"},
	{"temperature", "fever"},
	{"sore throat", "sore_throat"},
	{"headache", "headache"},
	{"abdominal", "abdominal_pain"},
	{"stomach", "abdominal_pain"},
	{"vomit", "nausea"},
	{"nausea", "nausea"},
	{"diarrhea", "diarrhea"},
	{"rash", "rash"},
	{"hives", "rash"},
	{"ear pain", "ear_pain"},
	{"earache", "ear_pain"},
	{"urination", "urinary"},
	{"urine", "urinary"},
	{"peeing", "urinary"},
	{"dysuria", "urinary"},
	{"back pain", "back_pain"},
	{"flank", "back_pain"},
	{"shortness of breath", "shortness_of_breath"},
	{"short of breath", "shortness_of_breath"},
	{"chest pain", "chest_pain"},
	{"congestion", "congestion"},
	{"runny nose", "congestion"},
	{"stiff neck", "stiff_neck"},
	{"dizzy", "dizziness"},
	{"dizziness", "dizziness"},
}

var negationWords = map[string]bool{
	"no": true, "not": true, "without": true,
	"denies": true, "denied": true, "never": true,
}

// mentioned reports a non-negated occurrence of kw, looking back a few
// tokens for a negation cue ("no fever", "denies chest pain").
func mentioned(text, kw string) bool {
	for start := 0; ; {
		i := strings.Index(text[start:], kw)
		if i < 0 {
			return false
		}
		i += start
		prefix := strings.Fields(text[:i])
		negated := false
		from := len(prefix) - 3
		if from < 0 {
			from = 0
		}
		for _, tok := range prefix[from:] {
			if negationWords[strings.Trim(tok, ",.;:!?")] {
				negated = true
				break
			}
		}
		if !negated {
			return true
		}
		start = i + len(kw)
	}
}

// Extract parses one utterance into structured entities. The
// priorSymptoms argument exists for extractors that disambiguate with
// conversation context; the rule-based one does not need it.
func (e *RuleExtractor) Extract(_ context.Context, text string, _ []string) (triage.Extraction, error) {
	lower := strings.ToLower(text)
	var ext triage.Extraction

	ext.Age = parseAge(text)
	ext.Severity = parseSeverity(lower)
	ext.DurationDays = parseDurationDays(lower)
	ext.Pregnant = pregnancyRe.MatchString(text)

	seen := map[string]bool{}
	for _, entry := range symptomLexicon {
		if !seen[entry.Tag] && mentioned(lower, entry.Keyword) {
			seen[entry.Tag] = true
			ext.Symptoms = append(ext.Symptoms, entry.Tag)
		}
	}
	return ext, nil
}

func parseAge(text string) *triage.AgeValue {
	if m := ageMonthsRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			return &triage.AgeValue{Value: v, Unit: triage.AgeUnitMonths}
		}
	}
	if m := ageYearsRe.FindStringSubmatch(text); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			return &triage.AgeValue{Value: v, Unit: triage.AgeUnitYears}
		}
	}
	return nil
}

func parseSeverity(lower string) triage.Severity {
	if m := severityRe.FindString(lower); m != "" {
		return severityCanon[strings.ToLower(m)]
	}
	return ""
}

func parseDurationDays(lower string) *float64 {
	days := func(v float64) *float64 { return &v }
	if m := durHoursRe.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return days(v / 24.0)
		}
	}
	if m := durDaysRe.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return days(v)
		}
	}
	if m := durWeeksRe.FindStringSubmatch(lower); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return days(v * 7.0)
		}
	}
	if sinceYesterdayRe.MatchString(lower) {
		return days(1.0)
	}
	if todayRe.MatchString(lower) {
		return days(0.5)
	}
	if fewDaysRe.MatchString(lower) {
		return days(3.0)
	}
	return nil
}
