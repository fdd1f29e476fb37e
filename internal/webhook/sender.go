package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"
)

// SendOutcome classifies one outbound attempt for the retry state machine.
// All failure kinds are recoverable; the attempt budget is what makes a
// delivery terminal.
type SendOutcome string

const (
	OutcomeSucceeded         SendOutcome = "succeeded"
	OutcomeRejected          SendOutcome = "rejected"
	OutcomeTimeout           SendOutcome = "timeout"
	OutcomeConnectionFailure SendOutcome = "connection_failure"
)

// SendResult reports what happened to one outbound POST.
type SendResult struct {
	Outcome    SendOutcome
	StatusCode int
}

// Failed reports whether the attempt should count against the retry budget.
func (r SendResult) Failed() bool {
	return r.Outcome != OutcomeSucceeded
}

// Error renders the operator-facing last_error text.
func (r SendResult) Error() string {
	switch r.Outcome {
	case OutcomeSucceeded:
		return ""
	case OutcomeRejected:
		return fmt.Sprintf("receiver rejected with status %d", r.StatusCode)
	case OutcomeTimeout:
		return "attempt timed out"
	default:
		return "connection failure"
	}
}

// Sender performs the outbound POST for one delivery attempt.
type Sender interface {
	Send(ctx context.Context, config *Config, delivery *Delivery, timestamp time.Time) SendResult
}

// HTTPSender delivers over plain HTTP with a fixed per-attempt timeout.
type HTTPSender struct {
	client *http.Client
}

// NewHTTPSender constructs a sender. The timeout bounds the whole attempt
// including connection setup and response headers.
func NewHTTPSender(timeout time.Duration) *HTTPSender {
	return &HTTPSender{
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSender) Send(ctx context.Context, config *Config, delivery *Delivery, timestamp time.Time) SendResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.TargetURL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return SendResult{Outcome: OutcomeConnectionFailure}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, Sign(config.Secret, timestamp, delivery.Payload))
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(timestamp.Unix(), 10))
	req.Header.Set(HeaderEventType, string(delivery.EventType))
	req.Header.Set(HeaderDeliveryID, delivery.ID.String())

	resp, err := s.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return SendResult{Outcome: OutcomeTimeout}
		}
		return SendResult{Outcome: OutcomeConnectionFailure}
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return SendResult{Outcome: OutcomeSucceeded, StatusCode: resp.StatusCode}
	}
	return SendResult{Outcome: OutcomeRejected, StatusCode: resp.StatusCode}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var timeoutErr interface{ Timeout() bool }
	return errors.As(err, &timeoutErr) && timeoutErr.Timeout()
}
