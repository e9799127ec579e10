// Package backend implements the HTTP client for the remote answering
// service and its feedback-aggregation collaborator.
//
// Wire surface (see the service contract):
//   - GET  {base}/health                 -> 200 means available
//   - POST {base}/preguntar              -> {success, respuesta, assistantId,
//     shouldAskFeedback, threadId} or {success:false, error}
//   - POST {feedbackBase}/feedback       -> {success} or {success:false, error}
//
// The request/response field names are the backend's Spanish wire format
// and are kept verbatim; the client translates them into domain values.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/univassist/chat-engine/internal/domain"
)

// Client talks to the answering service. Safe for concurrent use.
type Client struct {
	baseURL         string
	feedbackBaseURL string
	httpClient      *http.Client
}

// New constructs a Client for the given base URLs. timeout bounds every
// request; the caller's context can cancel earlier.
func New(baseURL, feedbackBaseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:         baseURL,
		feedbackBaseURL: feedbackBaseURL,
		httpClient:      &http.Client{Timeout: timeout},
	}
}

// askRequest is the /preguntar payload. ThreadID is a pointer so the very
// first question of a conversation serializes as an explicit null.
type askRequest struct {
	Pregunta string  `json:"pregunta"`
	Curso    string  `json:"curso"`
	Carrera  string  `json:"carrera"`
	ThreadID *string `json:"threadId"`
}

// askResponse is the /preguntar reply envelope.
type askResponse struct {
	Success           bool   `json:"success"`
	Respuesta         string `json:"respuesta"`
	AssistantID       string `json:"assistantId"`
	ShouldAskFeedback bool   `json:"shouldAskFeedback"`
	ThreadID          string `json:"threadId"`
	Error             string `json:"error"`
}

// feedbackResponse is the /feedback reply envelope.
type feedbackResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Health probes the answering service once. A nil return means the service
// answered 200; any transport failure or non-200 status is an error.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health probe failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health probe returned status %d", resp.StatusCode)
	}
	return nil
}

// Ask submits a question with the user's profile and current thread id
// (empty means no thread yet) and returns the decoded answer.
func (c *Client) Ask(ctx context.Context, question, curso, carrera, threadID string) (*domain.Answer, error) {
	tr := otel.Tracer("backend/Client")
	ctx, span := tr.Start(ctx, "Ask",
		trace.WithAttributes(attribute.String("curso", curso), attribute.String("carrera", carrera)),
	)
	defer span.End()

	payload := askRequest{Pregunta: question, Curso: curso, Carrera: carrera}
	if threadID != "" {
		payload.ThreadID = &threadID
	}

	var out askResponse
	status, err := c.postJSON(ctx, c.baseURL+"/preguntar", payload, &out)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 || !out.Success {
		if out.Error != "" {
			return nil, fmt.Errorf("answering service: %s", out.Error)
		}
		return nil, fmt.Errorf("answering service returned status %d", status)
	}

	return &domain.Answer{
		Text:              out.Respuesta,
		AssistantID:       out.AssistantID,
		ShouldAskFeedback: out.ShouldAskFeedback,
		ThreadID:          out.ThreadID,
	}, nil
}

// SendFeedback posts a write-once feedback record to the aggregation
// collaborator. An error return means the record was NOT acknowledged and
// the caller must not mutate its dedup state.
func (c *Client) SendFeedback(ctx context.Context, rec domain.FeedbackRecord) error {
	var out feedbackResponse
	status, err := c.postJSON(ctx, c.feedbackBaseURL+"/feedback", rec, &out)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 || !out.Success {
		if out.Error != "" {
			return fmt.Errorf("feedback service: %s", out.Error)
		}
		return fmt.Errorf("feedback service returned status %d", status)
	}
	return nil
}

// postJSON marshals body, POSTs it, and decodes the JSON reply into out.
// The response body is decoded even on non-2xx statuses so callers can
// surface the backend's error message field.
func (c *Client) postJSON(ctx context.Context, url string, body, out any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}
