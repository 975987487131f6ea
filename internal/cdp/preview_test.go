package cdp

import (
	"context"
	"encoding/json"
	"testing"
)

func TestPreviewValuePrefersValue(t *testing.T) {
	obj := RemoteObject{Type: "number", Value: json.RawMessage(`42`)}
	got := PreviewValue(context.Background(), nil, obj)
	if got.Value != float64(42) {
		t.Fatalf("got value %v, want 42", got.Value)
	}
}

func TestPreviewValueFallsBackToProperties(t *testing.T) {
	obj := RemoteObject{
		Type: "object",
		Preview: &ObjectPreview{
			Properties: []PropertyPreview{{Name: "a", Value: "1", Type: "number"}},
		},
	}
	got := PreviewValue(context.Background(), nil, obj)
	if got.Properties["a"] != "1" {
		t.Fatalf("got properties %+v, want a=1", got.Properties)
	}
}

func TestPreviewValueTruncatesOverflow(t *testing.T) {
	props := make([]PropertyPreview, maxPreviewKeys+5)
	for i := range props {
		props[i] = PropertyPreview{Name: "k", Value: "v"}
	}
	obj := RemoteObject{Type: "object", Preview: &ObjectPreview{Properties: props}}
	got := PreviewValue(context.Background(), nil, obj)
	if !got.Truncated {
		t.Fatal("expected truncated preview")
	}
	if got.Properties["…"] != "+5 more" {
		t.Fatalf("got overflow sentinel %v, want +5 more", got.Properties["…"])
	}
}

func TestPreviewValueFallsBackToDescriptionThenType(t *testing.T) {
	withDesc := PreviewValue(context.Background(), nil, RemoteObject{Type: "function", Description: "function foo()"})
	if withDesc.Description != "function foo()" {
		t.Fatalf("got description %q, want function foo()", withDesc.Description)
	}

	bare := PreviewValue(context.Background(), nil, RemoteObject{Type: "undefined"})
	if bare.Type != "undefined" || bare.Description != "" {
		t.Fatalf("got %+v, want bare type only", bare)
	}
}
