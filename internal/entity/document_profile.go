package entity

import (
	"time"

	"github.com/google/uuid"
)

// PatternKind selects the matching strategy of one detection pattern.
type PatternKind string

const (
	PatternKeyword PatternKind = "keyword"
	PatternRegex   PatternKind = "regex"
)

// DetectionPattern is one profile-declared way to recognize an item type in
// OCR blocks. The core only requires that a match yields contiguous blocks;
// the strategy itself lives in profile data, not code.
type DetectionPattern struct {
	Kind  PatternKind `json:"kind"`
	Value string      `json:"value"`
	// Weight scales the match strength contribution, default 1.0.
	Weight float32 `json:"weight,omitempty"`
}

// ProfileItemType declares one expected item type and how to detect it.
type ProfileItemType struct {
	Name     string             `json:"name"`
	Patterns []DetectionPattern `json:"patterns"`
}

// DocumentProfile is the externally-managed schema describing the item types
// expected in a class of document (prescription, invoice, ...) for data
// transfer between layers.
type DocumentProfile struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Active      bool      `json:"active"`

	ItemTypes []ProfileItemType `json:"item_types"`

	// RetentionDays is the hook for per-tenant retention policy; the core
	// copies it onto jobs and computes nothing from it.
	RetentionDays int `json:"retention_days"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
