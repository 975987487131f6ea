package cdp

import (
	"regexp"
	"testing"
)

func TestSelectFrameSkipsIgnoredFrames(t *testing.T) {
	frames := []CallFrame{
		{URL: "webpack://node_modules/framework/runtime.js", LineNumber: 9, ColumnNumber: 4},
		{URL: "https://app.example/src/main.js", LineNumber: 41, ColumnNumber: 2},
	}
	ignore := []*regexp.Regexp{regexp.MustCompile(`node_modules`)}

	got, ok := SelectFrame(frames, ignore)
	if !ok {
		t.Fatal("expected a frame to be selected")
	}
	if got.File != "https://app.example/src/main.js" || got.Line != 42 || got.Column != 3 {
		t.Fatalf("got %+v, want the non-ignored frame with 1-based position", got)
	}
}

func TestSelectFrameFallsBackToFirstWhenAllIgnored(t *testing.T) {
	frames := []CallFrame{
		{URL: "webpack://node_modules/a.js", LineNumber: 0, ColumnNumber: 0},
		{URL: "webpack://node_modules/b.js", LineNumber: 1, ColumnNumber: 1},
	}
	ignore := []*regexp.Regexp{regexp.MustCompile(`node_modules`)}

	got, ok := SelectFrame(frames, ignore)
	if !ok || got.File != "webpack://node_modules/a.js" {
		t.Fatalf("got %+v, want fallback to first frame", got)
	}
}

func TestSelectFrameEmpty(t *testing.T) {
	if _, ok := SelectFrame(nil, nil); ok {
		t.Fatal("expected ok=false for no frames")
	}
}
