package domops

import (
	"strings"

	"context"

	"github.com/argus-dev/argus/internal/cdp"
	"github.com/argus-dev/argus/internal/model"
)

const (
	// DefaultOuterHTMLMaxChars and HardOuterHTMLMaxChars bound `dom info`'s
	// outerHTML capture (spec.md §4.6 "clamped to outerHtmlMaxChars
	// (default 50000, hard cap 500000)").
	DefaultOuterHTMLMaxChars = 50_000
	HardOuterHTMLMaxChars    = 500_000
)

// InfoRequest parameterizes `dom info` (spec.md §4.6).
type InfoRequest struct {
	Selector         Selector
	OuterHTMLMaxChars int
}

// InfoResult is the `dom info` response.
type InfoResult struct {
	Matches int                     `json:"matches"`
	Infos   []*model.DomElementInfo `json:"infos"`
}

// Info describes children-count and a clamped getOuterHTML for each
// matched node (spec.md §4.6 "dom info"). Read-only: zero matches is
// CodeNoMatch.
func Info(ctx context.Context, session *cdp.Session, req InfoRequest) (InfoResult, error) {
	maxChars := req.OuterHTMLMaxChars
	if maxChars <= 0 {
		maxChars = DefaultOuterHTMLMaxChars
	}
	if maxChars > HardOuterHTMLMaxChars {
		maxChars = HardOuterHTMLMaxChars
	}

	ids, err := RequireOne(ctx, session, req.Selector)
	if err != nil {
		return InfoResult{}, err
	}

	infos := make([]*model.DomElementInfo, 0, len(ids))
	for _, id := range ids {
		described, err := describeNode(ctx, session, id, 1)
		if err != nil {
			return InfoResult{}, err
		}
		html, err := getOuterHTML(ctx, session, id)
		if err != nil {
			return InfoResult{}, err
		}
		truncated := false
		if len(html) > maxChars {
			html = html[:maxChars]
			truncated = true
		}
		infos = append(infos, &model.DomElementInfo{
			NodeID:             id,
			Tag:                strings.ToLower(described.NodeName),
			ChildrenCount:      len(elementChildren(described.Children)),
			OuterHTML:          html,
			OuterHTMLTruncated: truncated,
		})
	}
	return InfoResult{Matches: len(ids), Infos: infos}, nil
}
