package imagegen

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/mealwise/mealwise/internal/config"
)

// GeminiGenerator generates images through the Gemini API image models.
type GeminiGenerator struct {
	client       *genai.Client
	defaultModel string
	cfg          config.ImageGenConfig
}

// NewGeminiGenerator creates a generator. Without an API key it returns an
// unconfigured generator rather than an error, so the gate can report it.
func NewGeminiGenerator(ctx context.Context, cfg config.ImageGenConfig) (*GeminiGenerator, error) {
	g := &GeminiGenerator{defaultModel: cfg.DefaultModel, cfg: cfg}
	if !cfg.Configured() {
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	g.client = client

	slog.Info("image generator configured", "provider", "gemini", "default_model", cfg.DefaultModel)
	return g, nil
}

// Configured reports whether the generator can reach the provider.
func (g *GeminiGenerator) Configured() bool {
	return g != nil && g.client != nil
}

// Generate produces a single image for req.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (*Image, error) {
	if !g.Configured() {
		return nil, ErrNotConfigured
	}

	model := req.Model
	if model == "" {
		model = g.defaultModel
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	resp, err := g.client.Models.GenerateImages(ctx, model, req.Prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		AspectRatio:    string(req.AspectRatio),
	})
	if err != nil {
		return nil, &ProviderError{Provider: "gemini", Model: model, Message: err.Error(), Err: err}
	}

	if len(resp.GeneratedImages) == 0 {
		return nil, &ProviderError{Provider: "gemini", Model: model, Message: "no image returned"}
	}
	generated := resp.GeneratedImages[0]
	if generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
		msg := "empty image returned"
		if generated.RAIFilteredReason != "" {
			msg = "image filtered: " + generated.RAIFilteredReason
		}
		return nil, &ProviderError{Provider: "gemini", Model: model, Message: msg}
	}

	return NewImage(generated.Image.ImageBytes, generated.Image.MIMEType, model), nil
}
