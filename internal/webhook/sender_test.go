package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complyd/internal/audit"
	id "complyd/pkg/domain"
)

type receivedRequest struct {
	body    []byte
	headers http.Header
}

func senderFixture(t *testing.T, status int) (*Config, *Delivery, *httptest.Server, *receivedRequest) {
	t.Helper()

	received := &receivedRequest{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		received.body = body
		received.headers = r.Header.Clone()
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	config, err := NewConfig(id.NewTenantID(), server.URL, "super-secret-key-1",
		[]audit.EventType{audit.EventCaseResolved}, modelTime)
	require.NoError(t, err)
	delivery := NewDelivery(config, "evt-1", audit.EventCaseResolved, []byte(`{"case_id":"case-1"}`), modelTime)
	return config, delivery, server, received
}

func Test_HTTPSender_SignsAndPosts(t *testing.T) {
	config, delivery, _, received := senderFixture(t, http.StatusOK)
	sender := NewHTTPSender(5 * time.Second)

	result := sender.Send(context.Background(), config, delivery, modelTime)

	require.Equal(t, OutcomeSucceeded, result.Outcome)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.False(t, result.Failed())
	assert.Empty(t, result.Error())

	assert.Equal(t, delivery.Payload, received.body)
	assert.Equal(t, "application/json", received.headers.Get("Content-Type"))
	assert.Equal(t, "1749983400", received.headers.Get(HeaderTimestamp))
	assert.Equal(t, "case.resolved", received.headers.Get(HeaderEventType))
	assert.Equal(t, delivery.ID.String(), received.headers.Get(HeaderDeliveryID))

	// The receiver can recompute the signature from the raw body and the
	// timestamp header alone.
	sig := received.headers.Get(HeaderSignature)
	assert.True(t, VerifySignature(config.Secret, modelTime, received.body, sig))
}

func Test_HTTPSender_RejectionIsRecoverable(t *testing.T) {
	config, delivery, _, _ := senderFixture(t, http.StatusInternalServerError)
	sender := NewHTTPSender(5 * time.Second)

	result := sender.Send(context.Background(), config, delivery, modelTime)

	assert.Equal(t, OutcomeRejected, result.Outcome)
	assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
	assert.True(t, result.Failed())
	assert.Equal(t, "receiver rejected with status 500", result.Error())
}

func Test_HTTPSender_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(server.Close)

	config, err := NewConfig(id.NewTenantID(), server.URL, "super-secret-key-1",
		[]audit.EventType{audit.EventCaseResolved}, modelTime)
	require.NoError(t, err)
	delivery := NewDelivery(config, "evt-1", audit.EventCaseResolved, []byte(`{}`), modelTime)

	sender := NewHTTPSender(20 * time.Millisecond)
	result := sender.Send(context.Background(), config, delivery, modelTime)

	assert.Equal(t, OutcomeTimeout, result.Outcome)
	assert.Equal(t, "attempt timed out", result.Error())
}

func Test_HTTPSender_ConnectionFailure(t *testing.T) {
	config, delivery, server, _ := senderFixture(t, http.StatusOK)
	server.Close()

	sender := NewHTTPSender(time.Second)
	result := sender.Send(context.Background(), config, delivery, modelTime)

	assert.Equal(t, OutcomeConnectionFailure, result.Outcome)
	assert.Equal(t, "connection failure", result.Error())
}
