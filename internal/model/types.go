// Package model defines the wire-level data types shared across Argus's
// watcher packages: the registry record, captured log/network events, and
// the persistent emulation/throttle desired-state shapes (spec.md §3).
package model

// WatcherRecord describes one live watcher process in the registry
// (spec.md §3 "WatcherRecord").
type WatcherRecord struct {
	ID        string         `json:"id"`
	Host      string         `json:"host"`
	Port      int            `json:"port"`
	PID       int            `json:"pid"`
	Cwd       string         `json:"cwd"`
	StartedAt int64          `json:"startedAt"`
	UpdatedAt int64          `json:"updatedAt"`
	Match     *TargetMatch   `json:"match,omitempty"`
	Chrome    *ChromeAddress `json:"chrome,omitempty"`
	Source    string         `json:"source"` // "cdp" | "extension"
}

// ChromeAddress is the CDP browser endpoint a watcher attached through.
type ChromeAddress struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// TargetMatch is the selector predicate set used to find a CDP target
// (spec.md §4.3 "Target matching"). A nil/zero field means "not supplied".
type TargetMatch struct {
	URLContains    string `json:"urlContains,omitempty"`
	TitleContains  string `json:"titleContains,omitempty"`
	URLRegex       string `json:"urlRegex,omitempty"`
	TitleRegex     string `json:"titleRegex,omitempty"`
	Type           string `json:"type,omitempty"`
	Origin         string `json:"origin,omitempty"`
	TargetID       string `json:"targetId,omitempty"`
	ParentURLContains string `json:"parentUrlContains,omitempty"`
}

// IsZero reports whether no predicate was supplied, meaning "first target" (spec.md §4.3).
func (m *TargetMatch) IsZero() bool {
	if m == nil {
		return true
	}
	return m.URLContains == "" && m.TitleContains == "" && m.URLRegex == "" &&
		m.TitleRegex == "" && m.Type == "" && m.Origin == "" && m.TargetID == "" &&
		m.ParentURLContains == ""
}

// LogEvent is a normalized console/exception/system log record (spec.md §3 "LogEvent").
type LogEvent struct {
	ID        int64          `json:"id"`
	Ts        int64          `json:"ts"`
	Level     string         `json:"level"` // log|info|debug|warning|error|exception
	Text      string         `json:"text"`
	Args      []ArgPreview   `json:"args,omitempty"`
	Source    string         `json:"source"` // console|exception|system
	File      string         `json:"file,omitempty"`
	Line      int            `json:"line,omitempty"`
	Column    int            `json:"column,omitempty"`
	PageURL   string         `json:"pageUrl,omitempty"`
	PageTitle string         `json:"pageTitle,omitempty"`
}

// ArgPreview is a bounded JSON-shaped preview of one console.log argument
// (spec.md §4.3 "Remote value serialization").
type ArgPreview struct {
	Type        string         `json:"type"`
	Value       any            `json:"value,omitempty"`
	Description string         `json:"description,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	Truncated   bool           `json:"truncated,omitempty"`
}

// NetworkRequestSummary is the normalized record of one network request
// (spec.md §3 "NetworkRequestSummary").
type NetworkRequestSummary struct {
	ID                 int64   `json:"id"`
	Ts                 int64   `json:"ts"`
	RequestID          string  `json:"requestId"`
	URL                string  `json:"url"`
	Method             string  `json:"method"`
	ResourceType       string  `json:"resourceType"`
	Status             int     `json:"status,omitempty"`
	EncodedDataLength  float64 `json:"encodedDataLength,omitempty"`
	ErrorText          string  `json:"errorText,omitempty"`
	DurationMs         float64 `json:"durationMs,omitempty"`

	startTs float64 // wall-clock-independent CDP timestamp at requestWillBeSent, not serialized
}

// StartTs/SetStartTs carry the raw CDP `timestamp` (monotonic, seconds)
// needed to compute DurationMs on completion (spec.md §4.5); they are
// deliberately excluded from the JSON wire shape.
func (n *NetworkRequestSummary) SetStartTs(ts float64) { n.startTs = ts }
func (n *NetworkRequestSummary) StartTs() float64      { return n.startTs }

// EmulationState is the persistent desired device-emulation configuration
// a watcher reapplies on every attach until cleared (spec.md §3, §4.6).
type EmulationState struct {
	Viewport  *ViewportState `json:"viewport,omitempty"`
	Touch     *TouchState    `json:"touch,omitempty"`
	UserAgent *UAState       `json:"userAgent,omitempty"`
}

type ViewportState struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	DPR    float64 `json:"dpr"`
	Mobile bool    `json:"mobile"`
}

type TouchState struct {
	Enabled bool `json:"enabled"`
}

// UAState carries either an override string, or Value == nil meaning
// "restore baseline" (spec.md §4.6 "UA clear restores a baseline").
type UAState struct {
	Value *string `json:"value"`
}

// ThrottleState is the persistent desired CPU-throttle configuration (spec.md §3).
type ThrottleState struct {
	CPU *CPUThrottle `json:"cpu,omitempty"`
}

type CPUThrottle struct {
	Rate float64 `json:"rate"`
}

// DomNode is one node in a `dom tree` result (spec.md §3, §4.6).
type DomNode struct {
	NodeID          int               `json:"nodeId"`
	Tag             string            `json:"tag"`
	Attributes      map[string]string `json:"attributes,omitempty"`
	Children        []*DomNode        `json:"children,omitempty"`
	Truncated       bool              `json:"truncated,omitempty"`
	TruncatedReason string            `json:"truncatedReason,omitempty"` // max_nodes|depth
}

// DomElementInfo is one `dom info` result entry (spec.md §3, §4.6).
type DomElementInfo struct {
	NodeID             int    `json:"nodeId"`
	Tag                string `json:"tag"`
	ChildrenCount      int    `json:"childrenCount"`
	OuterHTML          string `json:"outerHTML"`
	OuterHTMLTruncated bool   `json:"outerHTMLTruncated,omitempty"`
}
