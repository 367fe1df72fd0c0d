package audit

import (
	"time"

	"github.com/google/uuid"
)

// Severity levels.
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

// Entry is one audit record per image generation attempt. It matches the
// image_generation_audit table schema.
type Entry struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	Outcome   string    `json:"outcome"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	IPHash    string    `json:"ip_hash,omitempty"`
	Details   Details   `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// Details holds request metadata. The prompt itself is not stored; only its
// length and a short preview.
type Details struct {
	Model         string `json:"model,omitempty"`
	AspectRatio   string `json:"aspect_ratio,omitempty"`
	PromptLength  int    `json:"prompt_length"`
	PromptPreview string `json:"prompt_preview,omitempty"`

	DailyUsed     int  `json:"daily_used"`
	DailyLimit    int  `json:"daily_limit"`
	RateRemaining int  `json:"rate_remaining"`
	RateLimit     int  `json:"rate_limit"`
	Fallback      bool `json:"fallback,omitempty"`

	ByteSize   int    `json:"byte_size,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ListParams holds pagination and filtering parameters for audit queries.
type ListParams struct {
	UserID   string
	Outcome  string
	Severity string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// DefaultListParams returns sensible defaults.
func DefaultListParams() ListParams {
	return ListParams{
		Page:     1,
		PageSize: 20,
	}
}

const previewRunes = 60

// PromptPreview truncates prompt to a short, loggable preview.
func PromptPreview(prompt string) string {
	r := []rune(prompt)
	if len(r) <= previewRunes {
		return prompt
	}
	return string(r[:previewRunes]) + "…"
}
