// Package imagegen wraps the external image model used by the admin tools.
package imagegen

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// AspectRatio is one of the ratios supported by the image model.
type AspectRatio string

const (
	AspectSquare        AspectRatio = "1:1"
	AspectPortrait      AspectRatio = "3:4"
	AspectLandscape     AspectRatio = "4:3"
	AspectTallPortrait  AspectRatio = "9:16"
	AspectWideLandscape AspectRatio = "16:9"
)

// MaxPromptLength bounds the prompt in characters.
const MaxPromptLength = 1000

// Request is a single image generation request.
type Request struct {
	Prompt      string      `json:"prompt" validate:"required,min=3,max=1000"`
	AspectRatio AspectRatio `json:"aspect_ratio" validate:"required,oneof=1:1 3:4 4:3 9:16 16:9"`
	Model       string      `json:"model,omitempty" validate:"omitempty,max=100"`
}

// Image is a generated artifact plus bookkeeping metadata.
type Image struct {
	Data     []byte `json:"-"`
	MIMEType string `json:"mime_type"`
	Model    string `json:"model"`
	ByteSize int    `json:"byte_size"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// RequestValidator checks requests before they reach the generation gate.
type RequestValidator struct {
	validate      *validator.Validate
	allowedModels []string
}

// NewRequestValidator creates a validator. An empty allow-list accepts any model.
func NewRequestValidator(allowedModels []string) *RequestValidator {
	return &RequestValidator{
		validate:      validator.New(),
		allowedModels: allowedModels,
	}
}

// Validate normalizes whitespace in req and checks it.
func (v *RequestValidator) Validate(req *Request) error {
	req.Prompt = strings.TrimSpace(req.Prompt)
	req.Model = strings.TrimSpace(req.Model)

	if err := v.validate.Struct(req); err != nil {
		return err
	}
	if req.Model != "" && len(v.allowedModels) > 0 && !slices.Contains(v.allowedModels, req.Model) {
		return fmt.Errorf("model %q is not allowed", req.Model)
	}
	return nil
}
