package settings

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kasirku/kasirku/internal/platform/httpx"
)

var ErrInvalidValue = fmt.Errorf("settings: value must be valid JSON: %w", httpx.ErrValidation)

// Setting is one key of store configuration such as the tax rate or the
// receipt footer.
type Setting struct {
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	IsPublic    bool            `json:"isPublic"`
	UpdatedBy   string          `json:"updatedBy,omitempty"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// PutInput creates or replaces a setting.
type PutInput struct {
	Value       json.RawMessage `json:"value" validate:"required"`
	Category    string          `json:"category" validate:"required,max=50,lowercase"`
	Description string          `json:"description" validate:"omitempty,max=500"`
	IsPublic    bool            `json:"isPublic"`
}
