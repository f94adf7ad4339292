package remote

import (
	"context"
	"fmt"
	"strings"

	"scenecast/internal/providers"
	"scenecast/internal/services"
)

// ScriptGenerator calls the script endpoint.
type ScriptGenerator struct {
	client *Client
}

// Generate requests a scene-by-scene script.
func (g *ScriptGenerator) Generate(ctx context.Context, req providers.ScriptRequest) (providers.Script, error) {
	var script providers.Script
	if strings.TrimSpace(req.Topic) == "" {
		return script, services.Wrap(services.ErrValidation, "script", "generate", "topic is required", nil)
	}
	if err := g.client.postJSON(ctx, "script", g.client.cfg.ScriptURL, req, &script); err != nil {
		return providers.Script{}, err
	}
	if len(script.Scenes) == 0 {
		return providers.Script{}, services.Wrap(services.ErrGeneration, "script", "generate", "response contained no scenes", nil)
	}
	for i, scene := range script.Scenes {
		if strings.TrimSpace(scene.Text) == "" {
			return providers.Script{}, services.Wrap(services.ErrGeneration, "script", "generate",
				fmt.Sprintf("scene %d has no narration text", i+1), nil)
		}
	}
	return script, nil
}

// ImageGenerator calls the image endpoint.
type ImageGenerator struct {
	client *Client
}

type imageRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type imageResponse struct {
	ImageURL string `json:"imageUrl"`
}

// Generate renders prompt and returns the image location.
func (g *ImageGenerator) Generate(ctx context.Context, prompt string, width, height int) (string, error) {
	var resp imageResponse
	req := imageRequest{Prompt: strings.TrimSpace(prompt), Width: width, Height: height}
	if err := g.client.postJSON(ctx, "images", g.client.cfg.ImageURL, req, &resp); err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.ImageURL) == "" {
		return "", services.Wrap(services.ErrGeneration, "images", "generate", "response contained no image url", nil)
	}
	return resp.ImageURL, nil
}

// VideoComposer calls the composition endpoint.
type VideoComposer struct {
	client *Client
}

// Compose renders the final video.
func (g *VideoComposer) Compose(ctx context.Context, req providers.ComposeRequest) (providers.Composition, error) {
	var out providers.Composition
	if err := g.client.postJSON(ctx, "composition", g.client.cfg.ComposeURL, req, &out); err != nil {
		return providers.Composition{}, err
	}
	if strings.TrimSpace(out.VideoURL) == "" {
		return providers.Composition{}, services.Wrap(services.ErrGeneration, "composition", "compose", "response contained no video url", nil)
	}
	return out, nil
}

var (
	_ providers.ScriptGenerator = (*ScriptGenerator)(nil)
	_ providers.ImageGenerator  = (*ImageGenerator)(nil)
	_ providers.VideoComposer   = (*VideoComposer)(nil)
)
