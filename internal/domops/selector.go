package domops

import (
	"context"
	"regexp"
	"strings"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/cdp"
)

// Selector is the common request shape every DOM op accepts (spec.md
// §4.6 "Selector resolution. All DOM ops take {selector, all?, text?}").
type Selector struct {
	Selector string
	All      bool
	Text     string // literal match, or "/pattern/flags" regex
}

// Resolve enables the DOM domain, fetches the document root, and runs
// DOM.querySelectorAll(rootId, selector), then narrows by the optional
// text filter (spec.md §4.6). It returns CodeMultipleMatches if more than
// one node matches and All is false; it does NOT error on zero matches —
// callers decide what an empty result means for their own semantics
// (operators report matches:0, read-only queries report "no element
// found", per spec.md §4.6).
func Resolve(ctx context.Context, session *cdp.Session, sel Selector) ([]int, error) {
	if session == nil {
		return nil, notAttached()
	}
	if err := enableDOM(ctx, session); err != nil {
		return nil, err
	}
	rootID, err := getDocument(ctx, session)
	if err != nil {
		return nil, err
	}
	ids, err := querySelectorAll(ctx, session, rootID, sel.Selector)
	if err != nil {
		return nil, err
	}

	if sel.Text != "" {
		ids, err = filterByText(ctx, session, ids, sel.Text)
		if err != nil {
			return nil, err
		}
	}

	if !sel.All && len(ids) > 1 {
		return nil, apierr.New(apierr.CodeMultipleMatches, "selector matched more than one element").
			WithContext("matches", len(ids))
	}
	return ids, nil
}

// filterByText keeps only nodes whose trimmed textContent matches text:
// a literal equality check, or a "/pattern/flags" regex test (spec.md §4.6).
func filterByText(ctx context.Context, session *cdp.Session, ids []int, text string) ([]int, error) {
	re, literal, err := parseTextFilter(text)
	if err != nil {
		return nil, err
	}

	var matched []int
	for _, id := range ids {
		content, err := textContent(ctx, session, id)
		if err != nil {
			continue
		}
		if re != nil {
			if re.MatchString(content) {
				matched = append(matched, id)
			}
			continue
		}
		if content == literal {
			matched = append(matched, id)
		}
	}
	return matched, nil
}

// parseTextFilter splits a "/pattern/flags" string into a compiled
// regexp, or returns the input unchanged for a literal-equality match.
func parseTextFilter(text string) (re *regexp.Regexp, literal string, err error) {
	if len(text) >= 2 && strings.HasPrefix(text, "/") {
		if idx := strings.LastIndex(text, "/"); idx > 0 {
			pattern := text[1:idx]
			flags := text[idx+1:]
			prefix := ""
			if strings.Contains(flags, "i") {
				prefix = "(?i)"
			}
			compiled, err := regexp.Compile(prefix + pattern)
			if err != nil {
				return nil, "", apierr.Wrap(err, apierr.CodeInvalidMatch, "invalid text regex")
			}
			return compiled, "", nil
		}
	}
	return nil, text, nil
}

// RequireOne resolves sel and additionally fails with CodeNoMatch when
// zero nodes match, for read-only queries (dom tree/info) that spec.md
// §4.6 says must surface "No element found" rather than succeed with
// zero results.
func RequireOne(ctx context.Context, session *cdp.Session, sel Selector) ([]int, error) {
	ids, err := Resolve(ctx, session, sel)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, apierr.New(apierr.CodeNoMatch, "no element found")
	}
	return ids, nil
}
