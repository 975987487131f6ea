package cdp

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/argus-dev/argus/internal/model"
)

// maxPreviewKeys is the preview cap from spec.md §4.3 ("at most 50 keys,
// explicit '…': '+N more' sentinel when exceeded") and §9 ("never
// recurse further").
const maxPreviewKeys = 50

// RemoteObject mirrors the CDP Runtime.RemoteObject shape this package
// needs for previewing.
type RemoteObject struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
	ObjectID    string          `json:"objectId,omitempty"`
	Preview     *ObjectPreview  `json:"preview,omitempty"`
}

// ObjectPreview mirrors Runtime.ObjectPreview.
type ObjectPreview struct {
	Overflow   bool              `json:"overflow"`
	Properties []PropertyPreview `json:"properties"`
}

// PropertyPreview mirrors Runtime.PropertyPreview.
type PropertyPreview struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

// propertyDescriptor mirrors the subset of Runtime.PropertyDescriptor
// this package needs from a Runtime.getProperties call.
type propertyDescriptor struct {
	Name  string       `json:"name"`
	Value *RemoteObject `json:"value,omitempty"`
}

type getPropertiesResult struct {
	Result []propertyDescriptor `json:"result"`
}

// PreviewValue builds the bounded JSON-shaped preview from a
// Runtime.RemoteObject, following spec.md §4.3's priority order:
// returned-by-value scalar, else preview.properties, else one
// non-recursive Runtime.getProperties call (capped at 50 keys), else the
// description string. session may be nil, in which case the getProperties
// fallback is skipped and description (or the bare type) is used instead.
func PreviewValue(ctx context.Context, session *Session, obj RemoteObject) model.ArgPreview {
	if len(obj.Value) > 0 && string(obj.Value) != "null" {
		var v any
		if err := json.Unmarshal(obj.Value, &v); err == nil {
			return model.ArgPreview{Type: obj.Type, Value: v}
		}
	}

	if obj.Preview != nil {
		return previewFromProperties(obj.Type, obj.Preview.Properties, obj.Preview.Overflow)
	}

	if obj.ObjectID != "" && session != nil {
		if descriptors, err := getProperties(ctx, session, obj.ObjectID); err == nil {
			return previewFromDescriptors(obj.Type, descriptors)
		}
	}

	if obj.Description != "" {
		return model.ArgPreview{Type: obj.Type, Description: obj.Description}
	}

	return model.ArgPreview{Type: obj.Type}
}

func getProperties(ctx context.Context, session *Session, objectID string) ([]propertyDescriptor, error) {
	raw, err := session.SendAndWait(ctx, "Runtime.getProperties", map[string]any{
		"objectId":      objectID,
		"ownProperties": true,
	}, DefaultTimeout)
	if err != nil {
		return nil, err
	}
	var result getPropertiesResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return result.Result, nil
}

func previewFromProperties(typ string, props []PropertyPreview, overflow bool) model.ArgPreview {
	properties := make(map[string]any, len(props))
	n := len(props)
	if n > maxPreviewKeys {
		overflow = true
		n = maxPreviewKeys
	}
	for _, p := range props[:n] {
		properties[p.Name] = p.Value
	}
	if overflow {
		properties["…"] = fmtMore(len(props) - n)
	}
	return model.ArgPreview{Type: typ, Properties: properties, Truncated: overflow}
}

func previewFromDescriptors(typ string, descriptors []propertyDescriptor) model.ArgPreview {
	properties := make(map[string]any, len(descriptors))
	truncated := false
	n := len(descriptors)
	if n > maxPreviewKeys {
		truncated = true
		n = maxPreviewKeys
	}
	for _, d := range descriptors[:n] {
		if d.Value == nil {
			continue
		}
		if len(d.Value.Value) > 0 {
			var v any
			if err := json.Unmarshal(d.Value.Value, &v); err == nil {
				properties[d.Name] = v
				continue
			}
		}
		properties[d.Name] = d.Value.Description
	}
	if truncated {
		properties["…"] = fmtMore(len(descriptors) - n)
	}
	return model.ArgPreview{Type: typ, Properties: properties, Truncated: truncated}
}

func fmtMore(n int) string {
	if n < 1 {
		n = 1
	}
	return "+" + strconv.Itoa(n) + " more"
}
