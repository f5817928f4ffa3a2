package report

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/signintech/gopdf"

	"triage-agent/internal/triage"
)

// Notifier delivers escalation handoffs to the on-call channel.
// We define it here to decouple from the webhook implementation.
type Notifier interface {
	SendMessage(ctx context.Context, text string) error
	SendDocument(ctx context.Context, fileName string, data []byte) error
}

// Service turns an escalated turn into a clinician handoff: a short
// PDF summary of the session slots and verdict. The summary carries
// structured slot state only, never raw patient text.
type Service struct {
	notifier Notifier
}

func NewService(notifier Notifier) *Service {
	return &Service{notifier: notifier}
}

// SendEscalationReport builds and delivers the handoff document. When
// PDF generation fails (usually a missing font on the host), it falls
// back to a plain text notification so the escalation is never lost.
func (s *Service) SendEscalationReport(ctx context.Context, sessionID string, slots triage.SlotSet, result triage.TurnResult, reason string) error {
	data, err := s.buildPDF(sessionID, slots, result, reason)
	if err != nil {
		return s.notifier.SendMessage(ctx, s.buildText(sessionID, slots, result, reason))
	}

	fileName := fmt.Sprintf("escalation_%s.pdf", sessionID)
	return s.notifier.SendDocument(ctx, fileName, data)
}

// fontPaths are common DejaVuSans locations across base images.
var fontPaths = []string{
	"/usr/share/fonts/ttf-dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
}

func (s *Service) buildPDF(sessionID string, slots triage.SlotSet, result triage.TurnResult, reason string) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	var fontErr error
	fontLoaded := false
	for _, path := range fontPaths {
		if err := pdf.AddTTFFont("DejaVu", path); err == nil {
			fontLoaded = true
			break
		} else {
			fontErr = err
		}
	}
	if !fontLoaded {
		return nil, fmt.Errorf("load report font: %w", fontErr)
	}

	if err := pdf.SetFont("DejaVu", "", 20); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Triage Escalation Report")
	pdf.Br(30)

	if err := pdf.SetFont("DejaVu", "", 12); err != nil {
		return nil, err
	}
	pdf.Cell(nil, fmt.Sprintf("Date: %s", time.Now().Format("02.01.2006 15:04")))
	pdf.Br(15)
	pdf.Cell(nil, fmt.Sprintf("Session: %s", sessionID))
	pdf.Br(15)
	pdf.Cell(nil, fmt.Sprintf("Status: %s", result.Status))
	pdf.Br(15)
	pdf.Cell(nil, fmt.Sprintf("Reason: %s", reason))
	pdf.Br(25)

	if err := pdf.SetFont("DejaVu", "", 14); err != nil {
		return nil, err
	}
	pdf.Cell(nil, "Collected context:")
	pdf.Br(15)

	if err := pdf.SetFont("DejaVu", "", 11); err != nil {
		return nil, err
	}
	for _, line := range slotLines(slots) {
		wrapped, _ := pdf.SplitText(line, 500)
		for _, l := range wrapped {
			pdf.Cell(nil, l)
			pdf.Br(12)
		}
	}
	pdf.Br(10)

	if result.NextStep != "" {
		if err := pdf.SetFont("DejaVu", "", 14); err != nil {
			return nil, err
		}
		pdf.Cell(nil, "Recommended next step:")
		pdf.Br(15)
		if err := pdf.SetFont("DejaVu", "", 11); err != nil {
			return nil, err
		}
		wrapped, _ := pdf.SplitText(result.NextStep, 500)
		for _, l := range wrapped {
			pdf.Cell(nil, l)
			pdf.Br(12)
		}
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write report pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) buildText(sessionID string, slots triage.SlotSet, result triage.TurnResult, reason string) string {
	lines := []string{
		"Triage escalation",
		fmt.Sprintf("Session: %s", sessionID),
		fmt.Sprintf("Status: %s", result.Status),
		fmt.Sprintf("Reason: %s", reason),
	}
	lines = append(lines, slotLines(slots)...)
	if result.NextStep != "" {
		lines = append(lines, fmt.Sprintf("Next step: %s", result.NextStep))
	}
	return strings.Join(lines, "\n")
}

func slotLines(slots triage.SlotSet) []string {
	var lines []string
	if slots.Age != nil {
		lines = append(lines, fmt.Sprintf("- Age: %d %s", slots.Age.Value, slots.Age.Unit))
	} else {
		lines = append(lines, "- Age: not provided")
	}
	if slots.Severity != "" {
		lines = append(lines, fmt.Sprintf("- Severity: %s", slots.Severity))
	} else {
		lines = append(lines, "- Severity: not provided")
	}
	if slots.DurationDays != nil {
		lines = append(lines, fmt.Sprintf("- Duration: %.1f days", *slots.DurationDays))
	} else {
		lines = append(lines, "- Duration: not provided")
	}
	if tags := slots.SymptomTags(); len(tags) > 0 {
		lines = append(lines, fmt.Sprintf("- Symptoms: %s", strings.Join(tags, ", ")))
	} else {
		lines = append(lines, "- Symptoms: none recorded")
	}
	return lines
}
