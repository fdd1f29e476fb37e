package audit

import (
	"bytes"
	"encoding/json"

	dErrors "complyd/pkg/domain-errors"
)

// Payload is the tagged payload variant for one event type. Modeling each
// shape as a struct (no map[string]any) catches malformed payloads at
// construction time and guarantees deterministic serialization for hashing.
type Payload interface {
	EventType() EventType
	Validate() error
}

// DecodePayload parses raw JSON into the typed payload for the given event
// type and validates it. Unknown fields are rejected so malformed producer
// payloads fail at intake rather than ending up frozen in the chain.
func DecodePayload(eventType EventType, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch eventType {
	case EventTenantCreated, EventTenantDeactivated, EventTenantReactivated:
		p = &TenantLifecycle{Event: eventType}
	case EventApplicantCreated:
		p = &ApplicantCreated{}
	case EventApplicantReviewed:
		p = &ApplicantReviewed{}
	case EventCaseResolved:
		p = &CaseResolved{}
	case EventScreeningHitResolved:
		p = &ScreeningHitResolved{}
	case EventWebhookConfigCreated, EventWebhookConfigDeactivated:
		p = &WebhookConfigChanged{Event: eventType}
	default:
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown event type %q", eventType)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(p); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "malformed payload")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// TenantLifecycle records tenant.created / tenant.deactivated /
// tenant.reactivated transitions.
type TenantLifecycle struct {
	Event      EventType `json:"-"`
	TenantName string    `json:"tenant_name"`
	Status     string    `json:"status"`
}

func (p TenantLifecycle) EventType() EventType { return p.Event }

func (p TenantLifecycle) Validate() error {
	switch p.Event {
	case EventTenantCreated, EventTenantDeactivated, EventTenantReactivated:
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "%q is not a tenant lifecycle event", p.Event)
	}
	if p.TenantName == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "tenant_name is required")
	}
	return nil
}

// ApplicantCreated records intake of a new KYC applicant.
type ApplicantCreated struct {
	ApplicantID string `json:"applicant_id"`
	Source      string `json:"source,omitempty"`
}

func (ApplicantCreated) EventType() EventType { return EventApplicantCreated }

func (p ApplicantCreated) Validate() error {
	if p.ApplicantID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "applicant_id is required")
	}
	return nil
}

// ApplicantReviewed records a reviewer decision on an applicant.
type ApplicantReviewed struct {
	ApplicantID string `json:"applicant_id"`
	ReviewerID  string `json:"reviewer_id"`
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
}

func (ApplicantReviewed) EventType() EventType { return EventApplicantReviewed }

func (p ApplicantReviewed) Validate() error {
	if p.ApplicantID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "applicant_id is required")
	}
	if p.ReviewerID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "reviewer_id is required")
	}
	if p.NewStatus == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "new_status is required")
	}
	return nil
}

// CaseResolved records closure of a compliance case.
type CaseResolved struct {
	CaseID     string `json:"case_id"`
	ResolverID string `json:"resolver_id"`
	Resolution string `json:"resolution"`
	Notes      string `json:"notes,omitempty"`
}

func (CaseResolved) EventType() EventType { return EventCaseResolved }

func (p CaseResolved) Validate() error {
	if p.CaseID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "case_id is required")
	}
	if p.ResolverID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "resolver_id is required")
	}
	if p.Resolution == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "resolution is required")
	}
	return nil
}

// ScreeningHitResolved records disposition of an AML/sanctions/PEP
// screening match.
type ScreeningHitResolved struct {
	HitID       string `json:"hit_id"`
	CaseID      string `json:"case_id,omitempty"`
	ResolverID  string `json:"resolver_id"`
	Disposition string `json:"disposition"`
}

func (ScreeningHitResolved) EventType() EventType { return EventScreeningHitResolved }

func (p ScreeningHitResolved) Validate() error {
	if p.HitID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "hit_id is required")
	}
	if p.ResolverID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "resolver_id is required")
	}
	if p.Disposition == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "disposition is required")
	}
	return nil
}

// WebhookConfigChanged records webhook endpoint lifecycle transitions.
type WebhookConfigChanged struct {
	Event     EventType `json:"-"`
	ConfigID  string    `json:"config_id"`
	TargetURL string    `json:"target_url,omitempty"`
}

func (p WebhookConfigChanged) EventType() EventType { return p.Event }

func (p WebhookConfigChanged) Validate() error {
	switch p.Event {
	case EventWebhookConfigCreated, EventWebhookConfigDeactivated:
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "%q is not a webhook config event", p.Event)
	}
	if p.ConfigID == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "config_id is required")
	}
	return nil
}
