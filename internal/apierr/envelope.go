package apierr

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// envelopeError is the `error` object inside a `{ok:false, error:{...}}`
// response (spec.md §4.4).
type envelopeError struct {
	Message string `json:"message"`
	Code    Code   `json:"code,omitempty"`
}

// WriteOK renders `{ok:true, ...payload fields}` by marshaling payload and
// splicing in "ok":true; payload must marshal to a JSON object (or nil,
// meaning just `{ok:true}`).
func WriteOK(w http.ResponseWriter, payload any) {
	body := map[string]any{"ok": true}
	if payload != nil {
		merged, err := mergeFields(body, payload)
		if err != nil {
			WriteError(w, Wrap(err, CodeInvalidBody, "failed to encode response"))
			return
		}
		body = merged
	}
	writeJSON(w, http.StatusOK, body)
}

// WriteError renders `{ok:false, error:{message, code}}` with the status
// apierr.Code.HTTPStatus() selects (spec.md §4.4, §7). Every handler
// funnels its failure path through here so "emits ok:false with a
// message" (spec.md §7 policy) is uniform across the API.
func WriteError(w http.ResponseWriter, err error) {
	code := CodeOf(err)
	status := code.HTTPStatus()
	log.Error().Err(err).Str("code", string(code)).Msg("handler error")
	writeJSON(w, status, map[string]any{
		"ok": false,
		"error": envelopeError{
			Message: err.Error(),
			Code:    code,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

// mergeFields marshals payload to a JSON object and merges it over base.
func mergeFields(base map[string]any, payload any) (map[string]any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		base[k] = v
	}
	return base, nil
}
