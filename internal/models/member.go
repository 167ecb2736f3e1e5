package models

import (
	"time"

	"github.com/google/uuid"
)

// AttributeGroups holds a board member's attributes organized into named
// groups (e.g. "technicalSkills" -> {"knowsPython": true}). Values come from
// JSONB, so leaves are bool, string, float64 or []any. Read-only during a game.
type AttributeGroups map[string]any

// BoardMember is an identity from the community directory that can appear on
// a game board and be a target. The directory subsystem creates and edits
// these records; the game core only reads them.
type BoardMember struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	Name       string          `json:"name" db:"name"`
	Attributes AttributeGroups `json:"attributes" db:"attributes"`
	CreatedAt  time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time       `json:"updatedAt" db:"updated_at"`
}
