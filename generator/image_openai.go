package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIImage implements ImageClient using the openai-go Images API.
// Generated and edited images come back base64-encoded and are returned
// as raw PNG bytes.
type OpenAIImage struct {
	Model string
	Opts  []option.RequestOption
}

func NewOpenAIImageFromConfig(cfg *LLMSettings) (*OpenAIImage, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; provide llm.api_key")
	}
	model := cfg.ImageModel
	if model == "" {
		model = "gpt-image-1"
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIImage{Model: model, Opts: opts}, nil
}

func (o *OpenAIImage) Generate(ctx context.Context, prompt string) ([]byte, error) {
	client := openai.NewClient(o.Opts...)

	resp, err := client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(o.Model),
		Size:   openai.ImageGenerateParamsSize1024x1024,
	})
	if err != nil {
		return nil, err
	}
	return decodeImageData(resp)
}

func (o *OpenAIImage) Edit(ctx context.Context, image []byte, mimeType, directive string) ([]byte, error) {
	client := openai.NewClient(o.Opts...)

	resp, err := client.Images.Edit(ctx, openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(image), fileNameForMIME(mimeType), mimeType),
		},
		Prompt: directive,
		Model:  openai.ImageModel(o.Model),
	})
	if err != nil {
		return nil, err
	}
	return decodeImageData(resp)
}

func decodeImageData(resp *openai.ImagesResponse) ([]byte, error) {
	if resp == nil || len(resp.Data) == 0 {
		return nil, errors.New("openai: empty image data")
	}
	b64 := resp.Data[0].B64JSON
	if b64 == "" {
		return nil, errors.New("openai: image response missing b64 payload")
	}
	return base64.StdEncoding.DecodeString(b64)
}

func fileNameForMIME(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return "upload.jpg"
	case "image/webp":
		return "upload.webp"
	default:
		return "upload.png"
	}
}
