package domops

import (
	"context"
	"strings"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/cdp"
)

// positionAliases maps the accepted `add` position aliases to the four
// canonical insertAdjacentHTML/Text positions (spec.md §4.6 "validated
// against the four position values and aliases {before, after, prepend,
// append}").
var positionAliases = map[string]string{
	"beforebegin": "beforebegin", "before": "beforebegin",
	"afterbegin": "afterbegin", "prepend": "afterbegin",
	"beforeend": "beforeend", "append": "beforeend",
	"afterend": "afterend", "after": "afterend",
}

// AddRequest parameterizes `dom add` (spec.md §4.6 "Mutation").
type AddRequest struct {
	Selector Selector
	Nth      *int // narrows to a single match (0-based)
	First    bool // narrows to the first match
	Position string
	HTML     string
	Text     string // when set, uses insertAdjacentText instead
	Expect   *int   // aborts with count_mismatch when matches != *Expect
}

// MutateResult is the uniform response for add/remove/modify/set-file/fill.
type MutateResult struct {
	Matches  int `json:"matches"`
	Affected int `json:"affected"`
}

// Add inserts HTML or text adjacent to each matched node via
// insertAdjacentHTML/insertAdjacentText (spec.md §4.6 "add").
func Add(ctx context.Context, session *cdp.Session, req AddRequest) (MutateResult, error) {
	if session == nil {
		return MutateResult{}, notAttached()
	}
	position, ok := positionAliases[strings.ToLower(req.Position)]
	if !ok {
		return MutateResult{}, apierr.New(apierr.CodeInvalidBody, "invalid position: "+req.Position)
	}

	ids, err := Resolve(ctx, session, req.Selector)
	if err != nil {
		return MutateResult{}, err
	}
	if req.Expect != nil && len(ids) != *req.Expect {
		return MutateResult{}, apierr.New(apierr.CodeCountMismatch, "selector matched a different count than expected").
			WithContext("matches", len(ids)).WithContext("expect", *req.Expect)
	}
	ids = narrow(ids, req.Nth, req.First)

	fnDecl := "function(pos, html){ this.insertAdjacentHTML(pos, html); }"
	arg := req.HTML
	if req.Text != "" {
		fnDecl = "function(pos, text){ this.insertAdjacentText(pos, text); }"
		arg = req.Text
	}

	affected := 0
	for _, id := range ids {
		if _, err := callOnNode(ctx, session, id, fnDecl, position, arg); err != nil {
			return MutateResult{}, err
		}
		affected++
	}
	return MutateResult{Matches: len(ids), Affected: affected}, nil
}

// narrow applies the `nth`/`first` selector-narrowing rule (spec.md §4.6
// "nth/first narrow to a single match").
func narrow(ids []int, nth *int, first bool) []int {
	if first && len(ids) > 0 {
		return ids[:1]
	}
	if nth != nil && *nth >= 0 && *nth < len(ids) {
		return ids[*nth : *nth+1]
	}
	return ids
}

// Remove deletes every matched node via DOM.removeNode.
func Remove(ctx context.Context, session *cdp.Session, sel Selector) (MutateResult, error) {
	if session == nil {
		return MutateResult{}, notAttached()
	}
	ids, err := Resolve(ctx, session, sel)
	if err != nil {
		return MutateResult{}, err
	}
	affected := 0
	for _, id := range ids {
		if _, err := session.SendAndWait(ctx, "DOM.removeNode", map[string]any{"nodeId": id}, cdp.DefaultTimeout); err != nil {
			return MutateResult{}, err
		}
		affected++
	}
	return MutateResult{Matches: len(ids), Affected: affected}, nil
}

// ModifyAttr sets or removes an HTML attribute on every matched node.
type ModifyAttr struct {
	Name  string  `json:"name"`
	Value *string `json:"value"` // nil removes the attribute
}

// ModifyClass adds/removes/toggles a class list token.
type ModifyClass struct {
	Op    string `json:"op"` // add|remove|toggle
	Class string `json:"class"`
}

// ModifyStyle sets an inline CSS property.
type ModifyStyle struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

// ModifyText sets textContent.
type ModifyText struct {
	Value string `json:"value"`
}

// ModifyHTML sets innerHTML.
type ModifyHTML struct {
	Value string `json:"value"`
}

// ModifyRequest is the discriminated union `dom modify` dispatches on
// (spec.md §4.6 "modify is a discriminated union over {attr, class,
// style, text, html}"). Exactly one field should be non-nil; the HTTP
// layer rejects unknown discriminators before this point (spec.md §9).
type ModifyRequest struct {
	Selector Selector
	Attr     *ModifyAttr
	Class    *ModifyClass
	Style    *ModifyStyle
	Text     *ModifyText
	HTML     *ModifyHTML
}

// Modify dispatches to the variant named by req's non-nil field.
func Modify(ctx context.Context, session *cdp.Session, req ModifyRequest) (MutateResult, error) {
	if session == nil {
		return MutateResult{}, notAttached()
	}
	ids, err := Resolve(ctx, session, req.Selector)
	if err != nil {
		return MutateResult{}, err
	}

	var fnDecl string
	var args []any
	switch {
	case req.Attr != nil:
		if req.Attr.Value == nil {
			fnDecl = "function(name){ this.removeAttribute(name); }"
			args = []any{req.Attr.Name}
		} else {
			fnDecl = "function(name, value){ this.setAttribute(name, value); }"
			args = []any{req.Attr.Name, *req.Attr.Value}
		}
	case req.Class != nil:
		switch req.Class.Op {
		case "add", "remove", "toggle":
			fnDecl = "function(op, cls){ this.classList[op](cls); }"
			args = []any{req.Class.Op, req.Class.Class}
		default:
			return MutateResult{}, apierr.New(apierr.CodeInvalidBody, "invalid class op: "+req.Class.Op)
		}
	case req.Style != nil:
		fnDecl = "function(prop, value){ this.style.setProperty(prop, value); }"
		args = []any{req.Style.Property, req.Style.Value}
	case req.Text != nil:
		fnDecl = "function(value){ this.textContent = value; }"
		args = []any{req.Text.Value}
	case req.HTML != nil:
		fnDecl = "function(value){ this.innerHTML = value; }"
		args = []any{req.HTML.Value}
	default:
		return MutateResult{}, apierr.New(apierr.CodeInvalidBody, "modify requires exactly one of attr/class/style/text/html")
	}

	affected := 0
	for _, id := range ids {
		if _, err := callOnNode(ctx, session, id, fnDecl, args...); err != nil {
			return MutateResult{}, err
		}
		affected++
	}
	return MutateResult{Matches: len(ids), Affected: affected}, nil
}

// SetFile sets the files of a matched <input type=file> via
// DOM.setFileInputFiles (spec.md §4.6 "set-file uses
// DOM.setFileInputFiles with absolute paths").
func SetFile(ctx context.Context, session *cdp.Session, sel Selector, paths []string) (MutateResult, error) {
	if session == nil {
		return MutateResult{}, notAttached()
	}
	ids, err := Resolve(ctx, session, sel)
	if err != nil {
		return MutateResult{}, err
	}
	affected := 0
	for _, id := range ids {
		if _, err := session.SendAndWait(ctx, "DOM.setFileInputFiles", map[string]any{
			"nodeId": id,
			"files":  paths,
		}, cdp.DefaultTimeout); err != nil {
			return MutateResult{}, err
		}
		affected++
	}
	return MutateResult{Matches: len(ids), Affected: affected}, nil
}

// Fill sets an input/textarea/select's value and dispatches `input` and
// `change` events so reactive frameworks observe the update (spec.md
// §4.6 "fill sets values and dispatches input+change events").
func Fill(ctx context.Context, session *cdp.Session, sel Selector, value string) (MutateResult, error) {
	if session == nil {
		return MutateResult{}, notAttached()
	}
	ids, err := Resolve(ctx, session, sel)
	if err != nil {
		return MutateResult{}, err
	}
	fnDecl := `function(value){
		this.value = value;
		this.dispatchEvent(new Event('input', {bubbles: true}));
		this.dispatchEvent(new Event('change', {bubbles: true}));
	}`
	affected := 0
	for _, id := range ids {
		if _, err := callOnNode(ctx, session, id, fnDecl, value); err != nil {
			return MutateResult{}, err
		}
		affected++
	}
	return MutateResult{Matches: len(ids), Affected: affected}, nil
}
