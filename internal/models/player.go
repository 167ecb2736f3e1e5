package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is the internal player record an external identity maps to.
type Player struct {
	ID          uuid.UUID `json:"id" db:"id"`
	ExternalID  string    `json:"-" db:"external_id"`
	DisplayName string    `json:"displayName" db:"display_name"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
