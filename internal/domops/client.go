// Package domops implements the DOM / input / emulation / throttle /
// storage / tracing / screenshot operators a watcher layers on top of its
// CDP session (spec.md §4.6, C6). Every operator takes the live
// *cdp.Session explicitly rather than holding one itself, so the
// persistent-desired-state controllers (EmulationController,
// ThrottleController) can be constructed once and reapplied against
// whichever session is current after a reattach (spec.md §4.8 "onAttach").
package domops

import (
	"context"
	"encoding/json"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/cdp"
)

// notAttached is the uniform error returned whenever an operator is
// invoked with a nil session (spec.md §7 "cdp_not_attached").
func notAttached() error {
	return apierr.New(apierr.CodeCDPNotAttached, "watcher is not attached to a target")
}

// domNode mirrors the subset of CDP's DOM.Node this package needs.
type domNode struct {
	NodeID     int       `json:"nodeId"`
	NodeType   int       `json:"nodeType"`
	NodeName   string    `json:"nodeName"`
	Attributes []string  `json:"attributes,omitempty"`
	Children   []domNode `json:"children,omitempty"`
}

// getDocument calls DOM.getDocument(depth:-1) and returns the root node id.
func getDocument(ctx context.Context, session *cdp.Session) (int, error) {
	raw, err := session.SendAndWait(ctx, "DOM.getDocument", map[string]any{"depth": -1, "pierce": false}, cdp.DefaultTimeout)
	if err != nil {
		return 0, err
	}
	var result struct {
		Root domNode `json:"root"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode DOM.getDocument result")
	}
	return result.Root.NodeID, nil
}

// querySelectorAll calls DOM.querySelectorAll(rootId, selector).
func querySelectorAll(ctx context.Context, session *cdp.Session, rootID int, selector string) ([]int, error) {
	raw, err := session.SendAndWait(ctx, "DOM.querySelectorAll", map[string]any{
		"nodeId":   rootID,
		"selector": selector,
	}, cdp.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	var result struct {
		NodeIDs []int `json:"nodeIds"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode DOM.querySelectorAll result")
	}
	return result.NodeIDs, nil
}

// describeNode calls DOM.describeNode to get tag name and attribute pairs.
func describeNode(ctx context.Context, session *cdp.Session, nodeID int, depth int) (domNode, error) {
	raw, err := session.SendAndWait(ctx, "DOM.describeNode", map[string]any{
		"nodeId": nodeID,
		"depth":  depth,
	}, cdp.DefaultTimeout)
	if err != nil {
		return domNode{}, err
	}
	var result struct {
		Node domNode `json:"node"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return domNode{}, apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode DOM.describeNode result")
	}
	return result.Node, nil
}

// attributesMap converts CDP's flat [name, value, name, value, ...] slice
// into a map, per spec.md §3 "attributes is a string→string mapping".
func attributesMap(flat []string) map[string]string {
	if len(flat) == 0 {
		return nil
	}
	out := make(map[string]string, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		out[flat[i]] = flat[i+1]
	}
	return out
}

// resolveNode calls DOM.resolveNode to get a JS Runtime objectId for nodeID.
func resolveNode(ctx context.Context, session *cdp.Session, nodeID int) (string, error) {
	raw, err := session.SendAndWait(ctx, "DOM.resolveNode", map[string]any{"nodeId": nodeID}, cdp.DefaultTimeout)
	if err != nil {
		return "", err
	}
	var result struct {
		Object struct {
			ObjectID string `json:"objectId"`
		} `json:"object"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode DOM.resolveNode result")
	}
	return result.Object.ObjectID, nil
}

// callOnNode evaluates a JS function declaration with `this` bound to
// nodeID's object, with args marshaled positionally, returning the
// by-value JSON result.
func callOnNode(ctx context.Context, session *cdp.Session, nodeID int, fnDecl string, args ...any) (json.RawMessage, error) {
	objectID, err := resolveNode(ctx, session, nodeID)
	if err != nil {
		return nil, err
	}
	cdpArgs := make([]map[string]any, 0, len(args))
	for _, a := range args {
		cdpArgs = append(cdpArgs, map[string]any{"value": a})
	}
	raw, err := session.SendAndWait(ctx, "Runtime.callFunctionOn", map[string]any{
		"objectId":            objectID,
		"functionDeclaration":  fnDecl,
		"arguments":            cdpArgs,
		"returnByValue":        true,
		"awaitPromise":         true,
	}, cdp.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	var result struct {
		Result struct {
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails,omitempty"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode Runtime.callFunctionOn result")
	}
	if result.ExceptionDetails != nil {
		return nil, apierr.New(apierr.CodeOperatorError, result.ExceptionDetails.Text)
	}
	return result.Result.Value, nil
}

// textContent returns the trimmed textContent of nodeID, used by the
// selector text filter (spec.md §4.6 "Selector resolution").
func textContent(ctx context.Context, session *cdp.Session, nodeID int) (string, error) {
	raw, err := callOnNode(ctx, session, nodeID, "function(){ return (this.textContent || '').trim(); }")
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode textContent")
	}
	return s, nil
}

// getBoxModel calls DOM.getBoxModel and returns the content quad's center point.
func getBoxModel(ctx context.Context, session *cdp.Session, nodeID int) (x, y float64, err error) {
	raw, err := session.SendAndWait(ctx, "DOM.getBoxModel", map[string]any{"nodeId": nodeID}, cdp.DefaultTimeout)
	if err != nil {
		return 0, 0, err
	}
	var result struct {
		Model struct {
			Content []float64 `json:"content"`
		} `json:"model"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, 0, apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode DOM.getBoxModel result")
	}
	quad := result.Model.Content
	if len(quad) != 8 {
		return 0, 0, apierr.New(apierr.CodeOperatorError, "element has no box model (not rendered)")
	}
	// quad is [x1,y1, x2,y2, x3,y3, x4,y4]; center is the mean of the four corners.
	for i := 0; i < 8; i += 2 {
		x += quad[i]
		y += quad[i+1]
	}
	return x / 4, y / 4, nil
}

// getOuterHTML calls DOM.getOuterHTML.
func getOuterHTML(ctx context.Context, session *cdp.Session, nodeID int) (string, error) {
	raw, err := session.SendAndWait(ctx, "DOM.getOuterHTML", map[string]any{"nodeId": nodeID}, cdp.DefaultTimeout)
	if err != nil {
		return "", err
	}
	var result struct {
		OuterHTML string `json:"outerHTML"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode DOM.getOuterHTML result")
	}
	return result.OuterHTML, nil
}

// enableDOM ensures the DOM domain is enabled; cheap to call repeatedly.
func enableDOM(ctx context.Context, session *cdp.Session) error {
	_, err := session.SendAndWait(ctx, "DOM.enable", nil, cdp.DefaultTimeout)
	return err
}
