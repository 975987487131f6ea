package cdp

import "regexp"

// CallFrame mirrors the CDP Runtime.CallFrame shape needed for frame
// selection.
type CallFrame struct {
	URL          string `json:"url"`
	LineNumber   int    `json:"lineNumber"`
	ColumnNumber int    `json:"columnNumber"`
}

// SelectedFrame is the 1-based frame location emitted in a LogEvent.
type SelectedFrame struct {
	File   string
	Line   int
	Column int
}

// SelectFrame scans frames in order and picks the first whose URL
// matches none of ignore; if every frame matches an ignore pattern, it
// falls back to the first frame (spec.md §4.3 "Stack-frame selection").
// CDP line/column are 0-based; the returned values are 1-based.
func SelectFrame(frames []CallFrame, ignore []*regexp.Regexp) (SelectedFrame, bool) {
	if len(frames) == 0 {
		return SelectedFrame{}, false
	}
	for _, f := range frames {
		if !matchesAny(f.URL, ignore) {
			return toSelected(f), true
		}
	}
	return toSelected(frames[0]), true
}

func matchesAny(url string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

func toSelected(f CallFrame) SelectedFrame {
	return SelectedFrame{File: f.URL, Line: f.LineNumber + 1, Column: f.ColumnNumber + 1}
}
