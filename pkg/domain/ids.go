// Package domain holds typed identifiers shared across modules.
//
// Every aggregate gets its own UUID-backed type so tenant, config, and
// delivery identifiers cannot be swapped at a call site. Parsing enforces
// the trust-boundary invariant: IDs must be valid, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "complyd/pkg/domain-errors"
)

type (
	// TenantID identifies a tenant organization, the isolation boundary
	// for audit chains and webhook configurations.
	TenantID uuid.UUID

	// EntryID identifies a single audit log entry.
	EntryID uuid.UUID

	// WebhookConfigID identifies a tenant-configured webhook endpoint.
	WebhookConfigID uuid.UUID

	// DeliveryID identifies one webhook delivery record.
	DeliveryID uuid.UUID
)

func (id TenantID) String() string        { return uuid.UUID(id).String() }
func (id EntryID) String() string         { return uuid.UUID(id).String() }
func (id WebhookConfigID) String() string { return uuid.UUID(id).String() }
func (id DeliveryID) String() string      { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id WebhookConfigID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DeliveryID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders IDs as canonical UUID strings in JSON and logs.
func (id TenantID) MarshalText() ([]byte, error)        { return []byte(id.String()), nil }
func (id EntryID) MarshalText() ([]byte, error)         { return []byte(id.String()), nil }
func (id WebhookConfigID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id DeliveryID) MarshalText() ([]byte, error)      { return []byte(id.String()), nil }

func (id *TenantID) UnmarshalText(b []byte) error {
	parsed, err := ParseTenantID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *EntryID) UnmarshalText(b []byte) error {
	parsed, err := ParseEntryID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *WebhookConfigID) UnmarshalText(b []byte) error {
	parsed, err := ParseWebhookConfigID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id *DeliveryID) UnmarshalText(b []byte) error {
	parsed, err := ParseDeliveryID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewTenantID returns a fresh random tenant ID.
func NewTenantID() TenantID { return TenantID(uuid.New()) }

// NewEntryID returns a fresh random entry ID.
func NewEntryID() EntryID { return EntryID(uuid.New()) }

// NewWebhookConfigID returns a fresh random webhook config ID.
func NewWebhookConfigID() WebhookConfigID { return WebhookConfigID(uuid.New()) }

// NewDeliveryID returns a fresh random delivery ID.
func NewDeliveryID() DeliveryID { return DeliveryID(uuid.New()) }

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	if len(raw) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is too long")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return parsed, nil
}

// ParseTenantID parses and validates a tenant ID from its string form.
func ParseTenantID(raw string) (TenantID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return TenantID{}, err
	}
	return TenantID(parsed), nil
}

// ParseEntryID parses and validates an audit entry ID from its string form.
func ParseEntryID(raw string) (EntryID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return EntryID{}, err
	}
	return EntryID(parsed), nil
}

// ParseWebhookConfigID parses and validates a webhook config ID from its string form.
func ParseWebhookConfigID(raw string) (WebhookConfigID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return WebhookConfigID{}, err
	}
	return WebhookConfigID(parsed), nil
}

// ParseDeliveryID parses and validates a delivery ID from its string form.
func ParseDeliveryID(raw string) (DeliveryID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return DeliveryID{}, err
	}
	return DeliveryID(parsed), nil
}
