package domain

import (
	"time"

	"github.com/google/uuid"
)

// StatusHistoryEntry records one status transition. Entries are append-only:
// one per successful transition, never edited or deleted.
type StatusHistoryEntry struct {
	ID        uuid.UUID
	TripID    int64
	From      Status
	To        Status
	Note      string
	Actor     string
	CreatedAt time.Time
}
