package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/jdkato/prose/v2"
)

// AppointmentBooker books doctor appointments through the external workflow
// system.
type AppointmentBooker interface {
	Book(ctx context.Context, req BookingRequest) (string, error)
}

// BookingRequest is the payload of one appointment booking attempt.
type BookingRequest struct {
	Email         string `json:"email"`
	DesiredTime   string `json:"desired_time"`
	DesiredDoctor string `json:"desired_doctor"`
	UserMessage   string `json:"user_message"`
	SessionID     string `json:"session_id"`
}

// WebhookBooker posts booking requests to the configured n8n-style webhook.
type WebhookBooker struct {
	webhookURL string
	httpClient *http.Client
	logger     *log.Logger
}

// NewWebhookBooker creates an appointment booker for the given webhook URL.
func NewWebhookBooker(webhookURL string, timeout time.Duration, logger *log.Logger) *WebhookBooker {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &WebhookBooker{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Book sends the booking request and returns the workflow's response text.
// Network, timeout, and non-2xx failures come back as *ExternalServiceError.
func (b *WebhookBooker) Book(ctx context.Context, req BookingRequest) (string, error) {
	if b.webhookURL == "" {
		return "", &ExternalServiceError{Service: "appointment", Err: fmt.Errorf("webhook url not configured")}
	}

	jsonBody, err := json.Marshal(req)
	if err != nil {
		return "", &ExternalServiceError{Service: "appointment", Err: fmt.Errorf("failed to marshal payload: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", b.webhookURL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", &ExternalServiceError{Service: "appointment", Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	b.logger.Printf("Sending appointment request for %s (doctor: %s, time: %s)", req.Email, req.DesiredDoctor, req.DesiredTime)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return "", &ExternalServiceError{Service: "appointment", Err: fmt.Errorf("webhook call failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ExternalServiceError{Service: "appointment", Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ExternalServiceError{Service: "appointment", Err: fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))}
	}

	message := extractWorkflowMessage(body)
	return b.formatBookingResponse(req, message), nil
}

// extractWorkflowMessage pulls the human-readable message out of the
// workflow's response envelope, falling back to the raw body.
func extractWorkflowMessage(body []byte) string {
	var envelope map[string]interface{}
	if err := json.Unmarshal(body, &envelope); err == nil {
		for _, field := range []string{"message", "response", "result"} {
			if v, ok := envelope[field].(string); ok && v != "" {
				return v
			}
		}
	}
	return strings.TrimSpace(string(body))
}

func (b *WebhookBooker) formatBookingResponse(req BookingRequest, workflowMessage string) string {
	formattedTime := req.DesiredTime
	if t, err := time.Parse("2006-01-02T15:04", req.DesiredTime); err == nil {
		formattedTime = t.Format("Monday, January 2, 2006 at 3:04 PM")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Appointment Booking Request for %s:\n", req.Email)
	fmt.Fprintf(&sb, "Doctor: Dr. %s\n", req.DesiredDoctor)
	fmt.Fprintf(&sb, "Requested Time: %s\n\n", formattedTime)
	fmt.Fprintf(&sb, "Booking System Response:\n%s", workflowMessage)
	return sb.String()
}

// BookingSlots holds the appointment fields extracted from free text.
type BookingSlots struct {
	Email       string
	DesiredTime string
	Doctor      string
}

// Complete reports whether every field needed for a booking was found.
func (s BookingSlots) Complete() bool {
	return s.Email != "" && s.DesiredTime != "" && s.Doctor != ""
}

// Missing lists the fields that could not be extracted.
func (s BookingSlots) Missing() []string {
	var missing []string
	if s.Doctor == "" {
		missing = append(missing, "doctor name")
	}
	if s.DesiredTime == "" {
		missing = append(missing, "desired time")
	}
	if s.Email == "" {
		missing = append(missing, "email address")
	}
	return missing
}

var (
	emailPattern   = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	isoTimePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}(?::\d{2})?`)
	doctorPattern  = regexp.MustCompile(`(?i)\bdr\.?\s+([A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)?)`)
)

// SlotExtractor pulls booking fields out of free text. Extraction is a
// best-effort heuristic: the extractor never invents values, and callers must
// handle incomplete results explicitly.
type SlotExtractor struct{}

// NewSlotExtractor creates a slot extractor.
func NewSlotExtractor() *SlotExtractor {
	return &SlotExtractor{}
}

// Extract returns the fields found in the text and whether all of them were
// present. Doctor names are matched by the "Dr. <Name>" pattern first, then
// by named-entity recognition over the text.
func (e *SlotExtractor) Extract(text string) (BookingSlots, bool) {
	var slots BookingSlots

	if m := emailPattern.FindString(text); m != "" {
		slots.Email = m
	}
	if m := isoTimePattern.FindString(text); m != "" {
		slots.DesiredTime = strings.Replace(m, " ", "T", 1)
	}

	if m := doctorPattern.FindStringSubmatch(text); m != nil {
		slots.Doctor = m[1]
	} else if name := personEntity(text); name != "" {
		slots.Doctor = name
	}

	return slots, slots.Complete()
}

// personEntity returns the first PERSON entity found in the text, or "".
func personEntity(text string) string {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return ""
	}
	for _, ent := range doc.Entities() {
		if ent.Label == "PERSON" {
			return ent.Text
		}
	}
	return ""
}
