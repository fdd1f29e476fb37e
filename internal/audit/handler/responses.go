package handler

import (
	"encoding/json"
	"time"

	"complyd/internal/audit"
)

type entryResponse struct {
	ID           string          `json:"id"`
	Sequence     int64           `json:"sequence"`
	EventType    string          `json:"event_type"`
	Payload      json.RawMessage `json:"payload"`
	Actor        string          `json:"actor,omitempty"`
	RecordedAt   time.Time       `json:"recorded_at"`
	PrevChecksum string          `json:"prev_checksum"`
	Checksum     string          `json:"checksum"`
}

type listResponse struct {
	Entries []entryResponse `json:"entries"`
	Count   int             `json:"count"`
}

func fromEntries(entries []*audit.Entry) []entryResponse {
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:           e.ID.String(),
			Sequence:     e.Sequence,
			EventType:    string(e.EventType),
			Payload:      e.Payload,
			Actor:        e.Actor,
			RecordedAt:   e.RecordedAt,
			PrevChecksum: e.PrevChecksum,
			Checksum:     e.Checksum,
		})
	}
	return out
}
