package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/model"
	"github.com/argus-dev/argus/internal/util"
)

// TargetInfo is one entry of Chrome's `/json` target list.
type TargetInfo struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	Title                string `json:"title"`
	URL                  string `json:"url"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	ParentID             string `json:"parentId,omitempty"`
}

// ListTargets fetches the `/json` list from Chrome's browser-level HTTP
// endpoint (spec.md §4.3 "Target matching. Fetch /json list.").
func ListTargets(ctx context.Context, host string, port int) ([]TargetInfo, error) {
	url := fmt.Sprintf("http://%s:%d/json", host, port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apierr.Wrap(err, apierr.CodeConnectFailed, "cannot build /json request")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, apierr.Wrap(err, apierr.CodeConnectFailed, "cannot reach chrome /json endpoint").WithContext("url", url)
	}
	defer resp.Body.Close()

	var targets []TargetInfo
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, apierr.Wrap(err, apierr.CodeConnectFailed, "cannot decode /json target list")
	}
	return targets, nil
}

// MatchTarget returns the first target satisfying every predicate set in
// m, in the order specified by spec.md §4.3 "Target matching": literal
// substring over url; literal substring over title; regex over url/
// title; exact type; origin prefix over url; explicit targetId (which
// bypasses all other predicates); parent-url substring over the parent
// target's url. An empty/zero match selects the first target.
func MatchTarget(targets []TargetInfo, m *model.TargetMatch) (TargetInfo, error) {
	if len(targets) == 0 {
		return TargetInfo{}, apierr.New(apierr.CodeNoMatch, "no targets available")
	}
	if m.IsZero() {
		return targets[0], nil
	}

	if m.TargetID != "" {
		for _, t := range targets {
			if t.ID == m.TargetID {
				return t, nil
			}
		}
		return TargetInfo{}, apierr.New(apierr.CodeNoMatch, "no target with the given targetId")
	}

	byID := make(map[string]TargetInfo, len(targets))
	for _, t := range targets {
		byID[t.ID] = t
	}

	var urlRe, titleRe *regexp.Regexp
	if m.URLRegex != "" {
		re, err := regexp.Compile(m.URLRegex)
		if err != nil {
			return TargetInfo{}, apierr.Wrap(err, apierr.CodeInvalidMatch, "invalid urlRegex")
		}
		urlRe = re
	}
	if m.TitleRegex != "" {
		re, err := regexp.Compile(m.TitleRegex)
		if err != nil {
			return TargetInfo{}, apierr.Wrap(err, apierr.CodeInvalidMatch, "invalid titleRegex")
		}
		titleRe = re
	}

	for _, t := range targets {
		if m.URLContains != "" && !strings.Contains(t.URL, m.URLContains) {
			continue
		}
		if m.TitleContains != "" && !strings.Contains(t.Title, m.TitleContains) {
			continue
		}
		if urlRe != nil && !urlRe.MatchString(t.URL) {
			continue
		}
		if titleRe != nil && !titleRe.MatchString(t.Title) {
			continue
		}
		if m.Type != "" && t.Type != m.Type {
			continue
		}
		if m.Origin != "" && !strings.HasPrefix(util.ExtractOrigin(t.URL), m.Origin) {
			continue
		}
		if m.ParentURLContains != "" {
			parent, ok := byID[t.ParentID]
			if !ok || !strings.Contains(parent.URL, m.ParentURLContains) {
				continue
			}
		}
		return t, nil
	}
	return TargetInfo{}, apierr.New(apierr.CodeNoMatch, "no target satisfies the given predicates")
}
