package capture

import (
	"encoding/json"
	"time"

	"github.com/argus-dev/argus/internal/model"
	"github.com/argus-dev/argus/internal/ring"
)

// NetworkPipeline normalizes Network.* CDP events into
// NetworkRequestSummary records, keyed by requestId across the
// requestWillBeSent→responseReceived→loadingFinished/loadingFailed
// lifecycle (spec.md §4.5). It is only ever wired up when network
// capture is enabled for a watcher (spec.md §4.7 "net_disabled").
type NetworkPipeline struct {
	Buffer *ring.NetBuffer
}

type requestWillBeSentEvent struct {
	RequestID string  `json:"requestId"`
	Timestamp float64 `json:"timestamp"`
	Request   struct {
		URL    string `json:"url"`
		Method string `json:"method"`
	} `json:"request"`
	Type string `json:"type"`
}

type responseReceivedEvent struct {
	RequestID string `json:"requestId"`
	Type      string `json:"type"`
	Response  struct {
		Status            int     `json:"status"`
		EncodedDataLength float64 `json:"encodedDataLength"`
	} `json:"response"`
}

type loadingFinishedEvent struct {
	RequestID string  `json:"requestId"`
	Timestamp float64 `json:"timestamp"`
}

type loadingFailedEvent struct {
	RequestID string  `json:"requestId"`
	Timestamp float64 `json:"timestamp"`
	ErrorText string  `json:"errorText"`
}

// HandleRequestWillBeSent creates the summary for a new request.
func (p *NetworkPipeline) HandleRequestWillBeSent(params json.RawMessage) {
	var evt requestWillBeSentEvent
	if err := json.Unmarshal(params, &evt); err != nil {
		return
	}
	summary := model.NetworkRequestSummary{
		Ts:           time.Now().UnixMilli(),
		RequestID:    evt.RequestID,
		URL:          evt.Request.URL,
		Method:       evt.Request.Method,
		ResourceType: evt.Type,
	}
	summary.SetStartTs(evt.Timestamp)
	p.Buffer.Add(summary)
}

// HandleResponseReceived records status/resourceType/encodedDataLength
// on the existing summary (spec.md §4.5).
func (p *NetworkPipeline) HandleResponseReceived(params json.RawMessage) {
	var evt responseReceivedEvent
	if err := json.Unmarshal(params, &evt); err != nil {
		return
	}
	p.Buffer.Update(evt.RequestID, func(s *model.NetworkRequestSummary) {
		s.Status = evt.Response.Status
		s.EncodedDataLength = evt.Response.EncodedDataLength
		if evt.Type != "" {
			s.ResourceType = evt.Type
		}
	})
}

// HandleLoadingFinished computes durationMs = ts - startTs (spec.md §4.5).
func (p *NetworkPipeline) HandleLoadingFinished(params json.RawMessage) {
	var evt loadingFinishedEvent
	if err := json.Unmarshal(params, &evt); err != nil {
		return
	}
	p.Buffer.Update(evt.RequestID, func(s *model.NetworkRequestSummary) {
		s.DurationMs = (evt.Timestamp - s.StartTs()) * 1000
	})
}

// HandleLoadingFailed records errorText and duration (spec.md §4.5).
func (p *NetworkPipeline) HandleLoadingFailed(params json.RawMessage) {
	var evt loadingFailedEvent
	if err := json.Unmarshal(params, &evt); err != nil {
		return
	}
	p.Buffer.Update(evt.RequestID, func(s *model.NetworkRequestSummary) {
		s.ErrorText = evt.ErrorText
		s.DurationMs = (evt.Timestamp - s.StartTs()) * 1000
	})
}
