// Package audit implements the tamper-evident, per-tenant audit chain.
//
// Every compliance-relevant action is recorded as an Entry in an
// append-only log. Each entry's checksum is computed as
// SHA-256(prev_checksum | sequence | event_type | canonical(payload) |
// timestamp), forming a hash chain where modifying any entry breaks the
// chain from that point forward. Chains are strictly per tenant; entries
// are never updated or deleted.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	id "complyd/pkg/domain"
)

// GenesisChecksum is the prev_checksum of every tenant's first entry.
var GenesisChecksum = func() string {
	sum := sha256.Sum256([]byte("complyd.audit.genesis"))
	return hex.EncodeToString(sum[:])
}()

// EventType categorizes an audit entry. Each type has exactly one payload
// shape, validated at construction.
type EventType string

const (
	EventTenantCreated            EventType = "tenant.created"
	EventTenantDeactivated        EventType = "tenant.deactivated"
	EventTenantReactivated        EventType = "tenant.reactivated"
	EventApplicantCreated         EventType = "applicant.created"
	EventApplicantReviewed        EventType = "applicant.reviewed"
	EventCaseResolved             EventType = "case.resolved"
	EventScreeningHitResolved     EventType = "screening_hit.resolved"
	EventWebhookConfigCreated     EventType = "webhook_config.created"
	EventWebhookConfigDeactivated EventType = "webhook_config.deactivated"
)

var knownEventTypes = map[EventType]struct{}{
	EventTenantCreated:            {},
	EventTenantDeactivated:        {},
	EventTenantReactivated:        {},
	EventApplicantCreated:         {},
	EventApplicantReviewed:        {},
	EventCaseResolved:             {},
	EventScreeningHitResolved:     {},
	EventWebhookConfigCreated:     {},
	EventWebhookConfigDeactivated: {},
}

// Known reports whether t is a registered event type.
func (t EventType) Known() bool {
	_, ok := knownEventTypes[t]
	return ok
}

// Entry is one link in a tenant's audit chain.
//
// Invariants:
//   - Sequence starts at 0 and increases gaplessly per tenant
//   - PrevChecksum equals the previous entry's Checksum (genesis for 0)
//   - Checksum covers all hashed fields; Payload is canonical JSON
//   - Immutable once written
type Entry struct {
	ID           id.EntryID      `json:"id"`
	TenantID     id.TenantID     `json:"tenant_id"`
	Sequence     int64           `json:"sequence"`
	EventType    EventType       `json:"event_type"`
	Payload      json.RawMessage `json:"payload"`
	Actor        string          `json:"actor,omitempty"`
	RecordedAt   time.Time       `json:"recorded_at"`
	PrevChecksum string          `json:"prev_checksum"`
	Checksum     string          `json:"checksum"`
}

// ComputeChecksum calculates the SHA-256 checksum for an entry from its
// hashed fields. The timestamp is normalized to UTC RFC3339Nano so the
// digest is reproducible across database round trips.
func ComputeChecksum(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|%s",
		e.PrevChecksum, e.Sequence, e.EventType,
		e.Payload, e.RecordedAt.UTC().Format(time.RFC3339Nano))
	return hex.EncodeToString(h.Sum(nil))
}

// NewEntry builds the next chain link after prev (nil for a fresh chain).
// The payload must already be canonical JSON. The timestamp is truncated to
// microseconds before hashing: TIMESTAMPTZ stores microsecond precision, and
// an entry must recompute to the same digest after a database round trip.
func NewEntry(tenantID id.TenantID, eventType EventType, payload json.RawMessage, actor string, recordedAt time.Time, prev *Entry) *Entry {
	entry := &Entry{
		ID:           id.NewEntryID(),
		TenantID:     tenantID,
		Sequence:     0,
		EventType:    eventType,
		Payload:      payload,
		Actor:        actor,
		RecordedAt:   recordedAt.UTC().Truncate(time.Microsecond),
		PrevChecksum: GenesisChecksum,
	}
	if prev != nil {
		entry.Sequence = prev.Sequence + 1
		entry.PrevChecksum = prev.Checksum
	}
	entry.Checksum = ComputeChecksum(entry)
	return entry
}

// VerificationResult reports the outcome of a chain verification walk.
// Tampering is an expected result value, never an error: detecting it is
// the whole point of the operation.
type VerificationResult struct {
	Valid   bool   `json:"valid"`
	Entries int    `json:"entries"`
	// TamperedAt is the sequence of the first divergent entry. Everything
	// after an invalid link is unverifiable by definition, so verification
	// stops there.
	TamperedAt int64  `json:"tampered_at,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Verification failure reasons.
const (
	ReasonChecksumMismatch     = "checksum mismatch"
	ReasonPrevChecksumMismatch = "previous checksum mismatch"
	ReasonSequenceGap          = "sequence gap"
	ReasonGenesisMismatch      = "genesis prev_checksum mismatch"
	ReasonFirstSequenceNotZero = "first sequence not zero"
)

func validResult(entries int) VerificationResult {
	return VerificationResult{Valid: true, Entries: entries}
}

func tamperedResult(entries int, atSequence int64, reason string) VerificationResult {
	return VerificationResult{Valid: false, Entries: entries, TamperedAt: atSequence, Reason: reason}
}
