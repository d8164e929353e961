// internal/services/vision_service.go
package services

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/gmatrix/gmatrix-backend/internal/config"
)

// UnnamedProduct is the sentinel returned whenever analysis cannot produce a
// name. Downstream flow always proceeds to manual naming.
const UnnamedProduct = "Unnamed Product"

const maxImageBytes = 5 * 1024 * 1024

const identifyPrompt = "You are labeling a photo of a packaged food product. " +
	"Reply with only the product name printed on the packaging, nothing else. " +
	"If no product name is readable, reply with an empty string."

var allowedImageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// VisionService is the image analysis gateway: one shot against an
// OpenAI-compatible vision model, then degrade gracefully. Upstream
// failures never propagate; input validation failures do.
type VisionService struct {
	llm     llms.Model
	timeout time.Duration
}

func NewVisionService(cfg config.AIConfig) (*VisionService, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithBaseURL(cfg.BaseURL),
	}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}

	return &VisionService{
		llm:     llm,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}, nil
}

// NewVisionServiceWithModel injects a model directly. Used by tests.
func NewVisionServiceWithModel(llm llms.Model, timeout time.Duration) *VisionService {
	return &VisionService{llm: llm, timeout: timeout}
}

// ValidatePhoto enforces the upload limits before any network call is made.
func ValidatePhoto(photo []byte, mimeType string) error {
	if len(photo) > maxImageBytes {
		return ErrImageTooLarge
	}
	if !allowedImageMimeTypes[strings.ToLower(mimeType)] {
		return ErrUnsupportedImageType
	}
	return nil
}

// IdentifyProduct extracts a product name from a photo. Oversized or
// unsupported inputs are rejected up front; once the external call is made,
// every failure mode (timeout, transport error, empty reply) degrades to
// UnnamedProduct with a nil error so the caller can fall through to manual
// naming.
func (s *VisionService) IdentifyProduct(ctx context.Context, photo []byte, mimeType string) (string, error) {
	if err := ValidatePhoto(photo, mimeType); err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.BinaryPart(strings.ToLower(mimeType), photo),
				llms.TextPart(identifyPrompt),
			},
		},
	}

	resp, err := s.llm.GenerateContent(callCtx, content, llms.WithMaxTokens(64))
	if err != nil {
		logrus.WithError(err).Warn("Image analysis call failed; falling back to manual naming")
		return UnnamedProduct, nil
	}

	if len(resp.Choices) == 0 {
		return UnnamedProduct, nil
	}

	name := strings.TrimSpace(resp.Choices[0].Content)
	name = strings.Trim(name, `"`)
	if name == "" {
		return UnnamedProduct, nil
	}

	return name, nil
}
