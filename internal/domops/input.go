package domops

import (
	"context"
	"strconv"
	"strings"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/cdp"
)

// Modifier bits (spec.md §4.6 "a modifier bitmask (Alt=1, Ctrl=2, Meta=4,
// Shift=8) derived from a comma list").
const (
	ModAlt   = 1
	ModCtrl  = 2
	ModMeta  = 4
	ModShift = 8
)

// ParseModifiers turns a comma-separated modifier list into the CDP bitmask.
func ParseModifiers(csv string) int {
	mask := 0
	for _, name := range strings.Split(csv, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "alt":
			mask |= ModAlt
		case "ctrl", "control":
			mask |= ModCtrl
		case "meta", "cmd", "command":
			mask |= ModMeta
		case "shift":
			mask |= ModShift
		}
	}
	return mask
}

// Point is a viewport coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// resolvePoint returns the coordinates to dispatch a mouse event at: an
// explicit viewport Point when sel.Selector is empty, otherwise the
// element's box-model center, optionally offset by Point (spec.md §4.6
// "click accepts {x,y} as either viewport coordinates (no selector) or
// element-relative offsets"). found is false only when sel.Selector was
// non-empty and matched zero elements.
func resolvePoint(ctx context.Context, session *cdp.Session, sel Selector, offset *Point) (p Point, nodeID int, found bool, err error) {
	if sel.Selector == "" {
		if offset == nil {
			return Point{}, 0, false, apierr.New(apierr.CodeInvalidBody, "either selector or x/y is required")
		}
		return *offset, 0, true, nil
	}
	ids, err := Resolve(ctx, session, sel)
	if err != nil {
		return Point{}, 0, false, err
	}
	if len(ids) == 0 {
		return Point{}, 0, false, nil
	}
	x, y, err := getBoxModel(ctx, session, ids[0])
	if err != nil {
		return Point{}, ids[0], true, err
	}
	if offset != nil {
		x += offset.X
		y += offset.Y
	}
	return Point{X: x, Y: y}, ids[0], true, nil
}

func dispatchMouseEvent(ctx context.Context, session *cdp.Session, eventType string, p Point, clickCount int) error {
	params := map[string]any{
		"type":   eventType,
		"x":      p.X,
		"y":      p.Y,
		"button": "left",
	}
	if clickCount > 0 {
		params["clickCount"] = clickCount
	}
	_, err := session.SendAndWait(ctx, "Input.dispatchMouseEvent", params, cdp.DefaultTimeout)
	return err
}

// HoverResult is the response for hover/click/focus.
type HoverResult struct {
	Matches int `json:"matches"`
}

// Hover moves the mouse to the element (or point) center (spec.md §4.6
// "hover/click/focus resolve center via DOM.getBoxModel, then
// Input.dispatchMouseEvent").
func Hover(ctx context.Context, session *cdp.Session, sel Selector, offset *Point) (HoverResult, error) {
	if session == nil {
		return HoverResult{}, notAttached()
	}
	p, _, found, err := resolvePoint(ctx, session, sel, offset)
	if err != nil {
		return HoverResult{}, err
	}
	if !found {
		return HoverResult{Matches: 0}, nil
	}
	if err := dispatchMouseEvent(ctx, session, "mouseMoved", p, 0); err != nil {
		return HoverResult{}, err
	}
	return HoverResult{Matches: 1}, nil
}

// ClickResult is the response for `dom click`.
type ClickResult struct {
	Matches int `json:"matches"`
	Clicked int `json:"clicked"`
}

// Click dispatches mouseMoved, mousePressed, mouseReleased at the
// resolved point(s); with All it clicks every matched element (spec.md
// §4.6, §8 "Multiple-match click").
func Click(ctx context.Context, session *cdp.Session, sel Selector, offset *Point) (ClickResult, error) {
	if session == nil {
		return ClickResult{}, notAttached()
	}
	if sel.Selector == "" {
		p, _, _, err := resolvePoint(ctx, session, sel, offset)
		if err != nil {
			return ClickResult{}, err
		}
		if err := clickAt(ctx, session, p); err != nil {
			return ClickResult{}, err
		}
		return ClickResult{Matches: 1, Clicked: 1}, nil
	}

	ids, err := Resolve(ctx, session, sel)
	if err != nil {
		return ClickResult{}, err
	}
	clicked := 0
	for _, id := range ids {
		x, y, err := getBoxModel(ctx, session, id)
		if err != nil {
			return ClickResult{}, err
		}
		p := Point{X: x, Y: y}
		if offset != nil {
			p.X += offset.X
			p.Y += offset.Y
		}
		if err := clickAt(ctx, session, p); err != nil {
			return ClickResult{}, err
		}
		clicked++
	}
	return ClickResult{Matches: len(ids), Clicked: clicked}, nil
}

func clickAt(ctx context.Context, session *cdp.Session, p Point) error {
	if err := dispatchMouseEvent(ctx, session, "mouseMoved", p, 0); err != nil {
		return err
	}
	if err := dispatchMouseEvent(ctx, session, "mousePressed", p, 1); err != nil {
		return err
	}
	return dispatchMouseEvent(ctx, session, "mouseReleased", p, 1)
}

// Focus calls DOM.focus on the single matched element.
func Focus(ctx context.Context, session *cdp.Session, sel Selector) (HoverResult, error) {
	if session == nil {
		return HoverResult{}, notAttached()
	}
	ids, err := Resolve(ctx, session, sel)
	if err != nil {
		return HoverResult{}, err
	}
	if len(ids) == 0 {
		return HoverResult{Matches: 0}, nil
	}
	if _, err := session.SendAndWait(ctx, "DOM.focus", map[string]any{"nodeId": ids[0]}, cdp.DefaultTimeout); err != nil {
		return HoverResult{}, err
	}
	return HoverResult{Matches: 1}, nil
}

// KeyDownRequest parameterizes `dom keydown` (spec.md §4.6).
type KeyDownRequest struct {
	Selector  Selector
	Key       string
	Modifiers string // comma list
}

// KeyDownResult reports the resolved modifier bitmask (spec.md §8
// "Keydown modifiers").
type KeyDownResult struct {
	Matches   int `json:"matches"`
	Modifiers int `json:"modifiers"`
}

// keyCodes maps the key names this watcher recognizes to their CDP
// windowsVirtualKeyCode (spec.md §4.6 "Unknown key names fail with
// unknown_key").
var keyCodes = map[string]int{
	"a": 65, "b": 66, "c": 67, "d": 68, "e": 69, "f": 70, "g": 71, "h": 72,
	"i": 73, "j": 74, "k": 75, "l": 76, "m": 77, "n": 78, "o": 79, "p": 80,
	"q": 81, "r": 82, "s": 83, "t": 84, "u": 85, "v": 86, "w": 87, "x": 88,
	"y": 89, "z": 90,
	"0": 48, "1": 49, "2": 50, "3": 51, "4": 52, "5": 53, "6": 54, "7": 55, "8": 56, "9": 57,
	"enter": 13, "tab": 9, "escape": 27, "backspace": 8, "delete": 46,
	"space": 32, "arrowup": 38, "arrowdown": 40, "arrowleft": 37, "arrowright": 39,
	"home": 36, "end": 35, "pageup": 33, "pagedown": 34,
}

// KeyDown dispatches Input.dispatchKeyEvent with the resolved modifier
// bitmask, optionally focusing sel's element first (spec.md §4.6).
func KeyDown(ctx context.Context, session *cdp.Session, req KeyDownRequest) (KeyDownResult, error) {
	if session == nil {
		return KeyDownResult{}, notAttached()
	}
	code, ok := keyCodes[strings.ToLower(req.Key)]
	if !ok {
		return KeyDownResult{}, apierr.New(apierr.CodeUnknownKey, "unknown key: "+req.Key)
	}
	modifiers := ParseModifiers(req.Modifiers)

	matches := 1
	if req.Selector.Selector != "" {
		ids, err := Resolve(ctx, session, req.Selector)
		if err != nil {
			return KeyDownResult{}, err
		}
		matches = len(ids)
		if matches == 0 {
			return KeyDownResult{Matches: 0, Modifiers: modifiers}, nil
		}
		if _, err := session.SendAndWait(ctx, "DOM.focus", map[string]any{"nodeId": ids[0]}, cdp.DefaultTimeout); err != nil {
			return KeyDownResult{}, err
		}
	}

	params := map[string]any{
		"type":                  "keyDown",
		"key":                   req.Key,
		"windowsVirtualKeyCode": code,
		"nativeVirtualKeyCode":  code,
		"modifiers":             modifiers,
	}
	if _, err := session.SendAndWait(ctx, "Input.dispatchKeyEvent", params, cdp.DefaultTimeout); err != nil {
		return KeyDownResult{}, err
	}
	params["type"] = "keyUp"
	if _, err := session.SendAndWait(ctx, "Input.dispatchKeyEvent", params, cdp.DefaultTimeout); err != nil {
		return KeyDownResult{}, err
	}
	return KeyDownResult{Matches: matches, Modifiers: modifiers}, nil
}

// ScrollRequest parameterizes `dom scroll` (touch-emulated page scroll).
type ScrollRequest struct {
	Selector Selector
	DX, DY   float64
}

// Scroll emulates a touch scroll gesture via
// Input.synthesizeScrollGesture (spec.md §4.6 "scroll emulates touch").
func Scroll(ctx context.Context, session *cdp.Session, req ScrollRequest) (HoverResult, error) {
	if session == nil {
		return HoverResult{}, notAttached()
	}
	x, y := 0.0, 0.0
	if req.Selector.Selector != "" {
		p, _, found, err := resolvePoint(ctx, session, req.Selector, nil)
		if err != nil {
			return HoverResult{}, err
		}
		if !found {
			return HoverResult{Matches: 0}, nil
		}
		x, y = p.X, p.Y
	}
	_, err := session.SendAndWait(ctx, "Input.synthesizeScrollGesture", map[string]any{
		"x": x, "y": y,
		"xDistance": -req.DX,
		"yDistance": -req.DY,
	}, cdp.DefaultTimeout)
	if err != nil {
		return HoverResult{}, err
	}
	return HoverResult{Matches: 1}, nil
}

// ScrollToRequest parameterizes `dom scroll-to`: an absolute or
// relative page/element scroll position (spec.md §4.6 "scroll-to
// animates the page or element to an absolute or relative position").
type ScrollToRequest struct {
	Selector Selector
	X, Y     float64
	Relative bool
}

// ScrollTo sets scrollLeft/scrollTop (or window.scrollBy/scrollTo for
// the page when no selector is given).
func ScrollTo(ctx context.Context, session *cdp.Session, req ScrollToRequest) (HoverResult, error) {
	if session == nil {
		return HoverResult{}, notAttached()
	}
	if req.Selector.Selector == "" {
		call := "window.scrollTo"
		if req.Relative {
			call = "window.scrollBy"
		}
		expr := call + "(" + formatFloat(req.X) + ", " + formatFloat(req.Y) + ")"
		if _, err := session.SendAndWait(ctx, "Runtime.evaluate", map[string]any{
			"expression": expr,
		}, cdp.DefaultTimeout); err != nil {
			return HoverResult{}, err
		}
		return HoverResult{Matches: 1}, nil
	}

	ids, err := Resolve(ctx, session, req.Selector)
	if err != nil {
		return HoverResult{}, err
	}
	if len(ids) == 0 {
		return HoverResult{Matches: 0}, nil
	}
	body := "function(x,y,relative){ if(relative){ this.scrollLeft+=x; this.scrollTop+=y; } else { this.scrollLeft=x; this.scrollTop=y; } }"
	if _, err := callOnNode(ctx, session, ids[0], body, req.X, req.Y, req.Relative); err != nil {
		return HoverResult{}, err
	}
	return HoverResult{Matches: 1}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
