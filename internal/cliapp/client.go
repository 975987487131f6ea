package cliapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/model"
)

// apiClient addresses a single watcher's loopback HTTP API (spec.md
// §4.7) from the CLI side, decoding the {ok:true,...}/{ok:false,
// error:{message,code}} envelope (spec.md §4.4) back into either out or
// an *apierr.Error.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(rec model.WatcherRecord) *apiClient {
	return &apiClient{
		baseURL: fmt.Sprintf("http://%s:%d", rec.Host, rec.Port),
		http:    &http.Client{Timeout: 35 * time.Second},
	}
}

type envelope struct {
	Ok    bool `json:"ok"`
	Error *struct {
		Message string      `json:"message"`
		Code    apierr.Code `json:"code"`
	} `json:"error"`
}

func decodeEnvelope(raw []byte, out any) error {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode watcher response: %w", err)
	}
	if !env.Ok {
		if env.Error != nil {
			return apierr.New(env.Error.Code, env.Error.Message)
		}
		return apierr.New(apierr.CodeOperatorError, "request failed")
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *apiClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *apiClient) post(ctx context.Context, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *apiClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return apierr.Wrap(err, apierr.CodeConnectFailed, "cannot reach watcher")
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierr.Wrap(err, apierr.CodeConnectFailed, "cannot read watcher response")
	}
	return decodeEnvelope(raw, out)
}
