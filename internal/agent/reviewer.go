package agent

import (
	"context"
	"encoding/json"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/pkg/errors"

	"triage-agent/internal/triage"
)

const reviewerSystemPrompt = `You are a safety reviewer for a medical triage assistant. The assistant's reply must be:
- Non-diagnostic (no definitive diagnoses).
- Conservative, never providing medication names or dosing.
- Consistent with red flags (must escalate if emergency/urgent).
- Include a disclaimer: "not a diagnosis" / "not for emergencies" (or equivalent).

You will receive a DRAFT object with fields: status, message, next_step, categories, rationale, disclaimer_present.

Return a strict JSON object with exactly:
{"action": "APPROVE" | "REWRITE" | "BLOCK", "reason": "short_code_reason", "text": "replacement message if REWRITE or BLOCK, else empty string"}

Rules:
- APPROVE only if the draft is safe and includes a disclaimer.
- REWRITE if wording is risky (diagnostic claims, certainty, missing disclaimer); keep the same intent and status.
- BLOCK if the draft is unsafe (medication instructions, dosing, illegal advice). Do not change the status yourself; only provide a safer text.
- Keep outputs short; no extra keys or commentary.`

// LLMReviewer is the model-backed safety self-check. It is consulted
// only after the deterministic policy checks pass; any failure here is
// converted to the gate's conservative fail-safe by the caller.
type LLMReviewer struct {
	client *openai.Client
	model  string
}

func NewLLMReviewer(apiKey, model string) *LLMReviewer {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &LLMReviewer{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

type reviewerVerdict struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
	Text   string `json:"text"`
}

func (r *LLMReviewer) Review(ctx context.Context, draft triage.Draft, _ triage.SafetyContext) (triage.SafetyVerdict, error) {
	payload, err := json.Marshal(map[string]any{
		"DRAFT": map[string]any{
			"status":             draft.Status,
			"message":            draft.ReplyText,
			"next_step":          draft.NextStep,
			"categories":         draft.Categories,
			"rationale":          draft.Rationale,
			"disclaimer_present": draft.DisclaimerPresent,
		},
	})
	if err != nil {
		return triage.SafetyVerdict{}, errors.Wrap(err, "marshal draft")
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: reviewerSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
	})
	if err != nil {
		return triage.SafetyVerdict{}, errors.Wrap(err, "safety review call")
	}
	if len(resp.Choices) == 0 {
		return triage.SafetyVerdict{}, errors.New("safety review: empty response")
	}

	verdict, err := parseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		return triage.SafetyVerdict{}, err
	}
	return verdict, nil
}

// parseVerdict extracts the first JSON object from the model output
// and validates the action.
func parseVerdict(content string) (triage.SafetyVerdict, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return triage.SafetyVerdict{}, errors.New("safety review: no JSON object in response")
	}

	var v reviewerVerdict
	if err := json.Unmarshal([]byte(content[start:end+1]), &v); err != nil {
		return triage.SafetyVerdict{}, errors.Wrap(err, "safety review: parse verdict")
	}

	action := triage.SafetyAction(strings.ToUpper(v.Action))
	switch action {
	case triage.SafetyApprove, triage.SafetyRewrite, triage.SafetyBlock:
	default:
		return triage.SafetyVerdict{}, errors.Errorf("safety review: bad action %q", v.Action)
	}
	return triage.SafetyVerdict{Action: action, Text: v.Text, Reason: v.Reason}, nil
}
