package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry is an immutable log line for one confidence transition.
type AuditEntry struct {
	ID            uuid.UUID  `json:"id"`
	StableID      string     `json:"stable_id"`
	From          Confidence `json:"from"`
	To            Confidence `json:"to"`
	Actor         string     `json:"actor"`
	Justification string     `json:"justification"`
	Timestamp     time.Time  `json:"timestamp"`
}

// ConfidenceChange is what the notification collaborator receives after a commit.
type ConfidenceChange struct {
	StableID  string     `json:"stable_id"`
	Old       Confidence `json:"old_confidence"`
	New       Confidence `json:"new_confidence"`
	Actor     string     `json:"actor"`
	Timestamp time.Time  `json:"timestamp"`
	Link      string     `json:"link"`
}
