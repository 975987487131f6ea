package domops

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/cdp"
	"github.com/argus-dev/argus/internal/config"
	"github.com/google/uuid"
)

// ScreenshotRequest parameterizes `screenshot` (spec.md §4.6 "screenshot
// captures the full viewport, or a single matched element's box model
// as a clip region").
type ScreenshotRequest struct {
	Selector Selector
	Format   string // "png" or "jpeg", default "png"
}

// ScreenshotResult is the `screenshot` response.
type ScreenshotResult struct {
	Path    string `json:"path"`
	Clipped bool   `json:"clipped"`
}

// Screenshot captures Page.captureScreenshot, clipped to the selector's
// box model when one is given, and writes the decoded image to
// <artifacts>/screenshots/<id>.<ext> (spec.md §4.6 "screenshot").
func Screenshot(ctx context.Context, session *cdp.Session, req ScreenshotRequest) (ScreenshotResult, error) {
	if session == nil {
		return ScreenshotResult{}, notAttached()
	}
	format := req.Format
	if format == "" {
		format = "png"
	}

	params := map[string]any{"format": format}
	clipped := false

	if req.Selector.Selector != "" {
		ids, err := RequireOne(ctx, session, req.Selector)
		if err != nil {
			return ScreenshotResult{}, err
		}
		clip, err := clipBox(ctx, session, ids[0])
		if err != nil {
			return ScreenshotResult{}, err
		}
		params["clip"] = clip
		clipped = true
	}

	raw, err := session.SendAndWait(ctx, "Page.captureScreenshot", params, cdp.DefaultTimeout)
	if err != nil {
		return ScreenshotResult{}, err
	}
	var result struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return ScreenshotResult{}, apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode Page.captureScreenshot result")
	}
	bytes, err := base64.StdEncoding.DecodeString(result.Data)
	if err != nil {
		return ScreenshotResult{}, apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode screenshot data")
	}

	dir, err := config.ScreenshotsDir()
	if err != nil {
		return ScreenshotResult{}, apierr.Wrap(err, apierr.CodeOperatorError, "cannot resolve screenshots directory")
	}
	if err := config.EnsureDir(dir); err != nil {
		return ScreenshotResult{}, apierr.Wrap(err, apierr.CodeOperatorError, "cannot create screenshots directory")
	}

	ext := "png"
	if format == "jpeg" {
		ext = "jpg"
	}
	path := filepath.Join(dir, uuid.NewString()+"."+ext)
	if err := os.WriteFile(path, bytes, 0o640); err != nil {
		return ScreenshotResult{}, apierr.Wrap(err, apierr.CodeOperatorError, "cannot write screenshot file")
	}

	return ScreenshotResult{Path: path, Clipped: clipped}, nil
}

// clipBox converts a node's box model into Page.captureScreenshot's clip
// region (top-left + dimensions, device-pixel scale 1).
func clipBox(ctx context.Context, session *cdp.Session, nodeID int) (map[string]any, error) {
	raw, err := session.SendAndWait(ctx, "DOM.getBoxModel", map[string]any{"nodeId": nodeID}, cdp.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	var result struct {
		Model struct {
			Content []float64 `json:"content"`
			Width   float64   `json:"width"`
			Height  float64   `json:"height"`
		} `json:"model"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode DOM.getBoxModel result")
	}
	quad := result.Model.Content
	if len(quad) != 8 {
		return nil, apierr.New(apierr.CodeOperatorError, "element has no box model (not rendered)")
	}
	return map[string]any{
		"x":      quad[0],
		"y":      quad[1],
		"width":  result.Model.Width,
		"height": result.Model.Height,
		"scale":  1,
	}, nil
}
