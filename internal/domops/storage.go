package domops

import (
	"context"
	"encoding/json"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/cdp"
)

// StorageGetResult is the `storage local get` response.
type StorageGetResult struct {
	Found bool   `json:"found"`
	Value string `json:"value,omitempty"`
}

// StorageListResult is the `storage local list` response.
type StorageListResult struct {
	Keys []string `json:"keys"`
}

// checkOrigin evaluates location.origin and compares it against want
// when want is non-empty (spec.md §4.6 "storage operators optionally
// validate against location.origin, failing with origin_mismatch").
func checkOrigin(ctx context.Context, session *cdp.Session, want string) error {
	if want == "" {
		return nil
	}
	raw, err := session.SendAndWait(ctx, "Runtime.evaluate", map[string]any{
		"expression":    "location.origin",
		"returnByValue": true,
	}, cdp.DefaultTimeout)
	if err != nil {
		return err
	}
	var result struct {
		Result struct {
			Value string `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode location.origin result")
	}
	if result.Result.Value != want {
		return apierr.New(apierr.CodeOriginMismatch, "page origin does not match requested origin").
			WithContext("pageOrigin", result.Result.Value).WithContext("wantOrigin", want)
	}
	return nil
}

func evalReturningJSON(ctx context.Context, session *cdp.Session, expr string) (json.RawMessage, error) {
	raw, err := session.SendAndWait(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expr,
		"returnByValue": true,
		"awaitPromise":  true,
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
		return nil, apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode Runtime.evaluate result")
	}
	if result.ExceptionDetails != nil {
		return nil, apierr.New(apierr.CodeOperatorError, result.ExceptionDetails.Text)
	}
	return result.Result.Value, nil
}

// StorageGet reads one localStorage key (spec.md §4.6 "storage local get").
func StorageGet(ctx context.Context, session *cdp.Session, origin, key string) (StorageGetResult, error) {
	if session == nil {
		return StorageGetResult{}, notAttached()
	}
	if err := checkOrigin(ctx, session, origin); err != nil {
		return StorageGetResult{}, err
	}
	raw, err := evalReturningJSON(ctx, session, "(() => { const v = window.localStorage.getItem("+jsonString(key)+"); return v === null ? {found:false} : {found:true, value:v}; })()")
	if err != nil {
		return StorageGetResult{}, err
	}
	var result StorageGetResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return StorageGetResult{}, apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode storage get result")
	}
	return result, nil
}

// StorageSet writes one localStorage key (spec.md §4.6 "storage local set").
func StorageSet(ctx context.Context, session *cdp.Session, origin, key, value string) error {
	if session == nil {
		return notAttached()
	}
	if err := checkOrigin(ctx, session, origin); err != nil {
		return err
	}
	_, err := evalReturningJSON(ctx, session, "window.localStorage.setItem("+jsonString(key)+", "+jsonString(value)+")")
	return err
}

// StorageRemove deletes one localStorage key.
func StorageRemove(ctx context.Context, session *cdp.Session, origin, key string) error {
	if session == nil {
		return notAttached()
	}
	if err := checkOrigin(ctx, session, origin); err != nil {
		return err
	}
	_, err := evalReturningJSON(ctx, session, "window.localStorage.removeItem("+jsonString(key)+")")
	return err
}

// StorageList enumerates localStorage keys (spec.md §4.6 "storage local list").
func StorageList(ctx context.Context, session *cdp.Session, origin string) (StorageListResult, error) {
	if session == nil {
		return StorageListResult{}, notAttached()
	}
	if err := checkOrigin(ctx, session, origin); err != nil {
		return StorageListResult{}, err
	}
	raw, err := evalReturningJSON(ctx, session, "Object.keys(window.localStorage)")
	if err != nil {
		return StorageListResult{}, err
	}
	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		return StorageListResult{}, apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode storage list result")
	}
	return StorageListResult{Keys: keys}, nil
}

// StorageClear empties localStorage (spec.md §4.6 "storage local clear").
func StorageClear(ctx context.Context, session *cdp.Session, origin string) error {
	if session == nil {
		return notAttached()
	}
	if err := checkOrigin(ctx, session, origin); err != nil {
		return err
	}
	_, err := evalReturningJSON(ctx, session, "window.localStorage.clear()")
	return err
}

// jsonString renders s as a JSON string literal for embedding directly
// into a Runtime.evaluate expression, so keys/values containing quotes
// or backslashes cannot break out of the generated script.
func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
