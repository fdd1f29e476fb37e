package event_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"complyd/internal/audit"
	auditstore "complyd/internal/audit/store/entry"
	"complyd/internal/event"
	"complyd/internal/webhook"
	deliverystore "complyd/internal/webhook/store/delivery"
	endpointstore "complyd/internal/webhook/store/endpoint"
	id "complyd/pkg/domain"
	dErrors "complyd/pkg/domain-errors"
	"complyd/pkg/requestcontext"
)

type okSender struct{}

func (okSender) Send(context.Context, *webhook.Config, *webhook.Delivery, time.Time) webhook.SendResult {
	return webhook.SendResult{Outcome: webhook.OutcomeSucceeded, StatusCode: 200}
}

type EventServiceSuite struct {
	suite.Suite
	auditor  *audit.Service
	webhooks *webhook.Service
	service  *event.Service
	ctx      context.Context
	tenantID id.TenantID
}

func (s *EventServiceSuite) SetupTest() {
	s.auditor = audit.NewService(auditstore.NewMemory())
	s.webhooks = webhook.NewService(endpointstore.NewMemory(), deliverystore.NewMemory(), okSender{})
	s.service = event.NewService(s.auditor, s.webhooks,
		event.WithLogger(slog.New(slog.DiscardHandler)))
	s.tenantID = id.NewTenantID()
	s.ctx = requestcontext.WithTime(context.Background(),
		time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC))
}

func TestEventServiceSuite(t *testing.T) {
	suite.Run(t, new(EventServiceSuite))
}

func (s *EventServiceSuite) TestRecord() {
	_, err := s.webhooks.CreateConfig(s.ctx, s.tenantID, "https://hooks.example.com", "super-secret-key-1",
		[]audit.EventType{audit.EventCaseResolved})
	s.Require().NoError(err)

	result, err := s.service.Record(s.ctx, s.tenantID, audit.EventCaseResolved,
		[]byte(`{"case_id":"case-1","resolver_id":"rev-2","resolution":"dismissed"}`))
	s.Require().NoError(err)
	s.Equal(int64(0), result.Entry.Sequence)
	s.Require().Len(result.Deliveries, 1)

	s.Run("delivery carries the entry's canonical bytes and key", func() {
		d := result.Deliveries[0]
		s.Equal(result.Entry.ID.String(), d.EventKey)
		s.Equal([]byte(result.Entry.Payload), d.Payload)
	})

	s.Run("unsubscribed events produce no deliveries", func() {
		result, err := s.service.Record(s.ctx, s.tenantID, audit.EventApplicantCreated,
			[]byte(`{"applicant_id":"app-1"}`))
		s.Require().NoError(err)
		s.Empty(result.Deliveries)
		s.Equal(int64(1), result.Entry.Sequence)
	})
}

func (s *EventServiceSuite) TestRecord_InvalidPayloadAborts() {
	_, err := s.service.Record(s.ctx, s.tenantID, audit.EventCaseResolved,
		[]byte(`{"case_id":"case-1"}`))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	entries, err := s.auditor.List(s.ctx, s.tenantID, audit.ListFilter{})
	s.Require().NoError(err)
	s.Empty(entries)
}

type failingEnqueuer struct{}

func (failingEnqueuer) Enqueue(context.Context, id.TenantID, audit.EventType, string, []byte) ([]*webhook.Delivery, error) {
	return nil, errors.New("store down")
}

func (s *EventServiceSuite) TestRecord_FanOutFailureKeepsEntry() {
	service := event.NewService(s.auditor, failingEnqueuer{},
		event.WithLogger(slog.New(slog.DiscardHandler)))

	result, err := service.Record(s.ctx, s.tenantID, audit.EventCaseResolved,
		[]byte(`{"case_id":"case-1","resolver_id":"rev-2","resolution":"dismissed"}`))
	s.Require().NoError(err)
	s.NotNil(result.Entry)
	s.Empty(result.Deliveries)

	entries, err := s.auditor.List(s.ctx, s.tenantID, audit.ListFilter{})
	s.Require().NoError(err)
	s.Len(entries, 1)
}

type staticGate bool

func (g staticGate) Active(context.Context, id.TenantID) (bool, error) {
	return bool(g), nil
}

func (s *EventServiceSuite) TestRecord_SuspendedTenantForbidden() {
	service := event.NewService(s.auditor, s.webhooks, event.WithTenantGate(staticGate(false)))

	_, err := service.Record(s.ctx, s.tenantID, audit.EventCaseResolved,
		[]byte(`{"case_id":"case-1","resolver_id":"rev-2","resolution":"dismissed"}`))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	entries, err := s.auditor.List(s.ctx, s.tenantID, audit.ListFilter{})
	s.Require().NoError(err)
	s.Empty(entries)
}
