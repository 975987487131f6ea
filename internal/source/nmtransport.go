package source

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/argus-dev/argus/internal/apierr"
)

// nmFrame is one length-prefixed frame exchanged with the extension's
// Native-Messaging host, multiplexing cdp_command/cdp_response/cdp_event
// and tab-lifecycle notifications over a single stdio pipe (spec.md §4.4
// "wire protocol multiplexes cdp_command/cdp_response/cdp_event and tab
// lifecycle frames over stdio").
type nmFrame struct {
	Type   string          `json:"type"`
	ID     int64           `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *string         `json:"error,omitempty"`
	Tab    *nmTabInfo      `json:"tab,omitempty"`
	Tabs   []nmTabInfo     `json:"tabs,omitempty"`
}

// nmTabInfo is the tab-lifecycle payload the extension reports on
// tab_list/tab_attached/tab_detached frames.
type nmTabInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// maxNMFrameSize caps a Native-Messaging payload, mirroring the
// maxBodySize guard in the teacher's bridge.ReadStdioMessageWithMode
// (internal/bridge/stdio.go) against a hostile/broken length prefix.
const maxNMFrameSize = 64 << 20

// readNMFrame reads one frame: a 4-byte native-byte-order length prefix
// followed by that many bytes of UTF-8 JSON, per Chrome's Native
// Messaging host protocol. Grounded on the buffered-reader framing loop
// of the teacher's bridge.ReadStdioMessageWithMode, adapted from that
// file's Content-Length/line framing to Native Messaging's binary
// length-prefix framing.
func readNMFrame(r *bufio.Reader) (nmFrame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nmFrame{}, err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > maxNMFrameSize {
		return nmFrame{}, fmt.Errorf("native-messaging frame too large: %d bytes", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nmFrame{}, err
	}
	var f nmFrame
	if err := json.Unmarshal(payload, &f); err != nil {
		return nmFrame{}, err
	}
	return f, nil
}

// writeNMFrame writes one frame using the same 4-byte length-prefix
// framing as readNMFrame.
func writeNMFrame(w io.Writer, mu *sync.Mutex, f nmFrame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	mu.Lock()
	defer mu.Unlock()
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// nmConn adapts a Native-Messaging stdio pipe to cdp.wireConn, so a
// cdp.Session can drive either a direct WebSocket or this proxied
// transport without knowing the difference (spec.md §4.4). Outgoing CDP
// requests are wrapped as "cdp_command" frames; incoming "cdp_response"
// and "cdp_event" frames are unwrapped back into the same {id, method,
// params, result, error} shape Session already expects from a raw CDP
// WebSocket, so Session's own JSON-RPC plumbing (session.go) needs no
// native-messaging awareness at all. Tab-lifecycle frames are diverted to
// onTab instead of being surfaced to Session.
type nmConn struct {
	r  *bufio.Reader
	w  io.Writer
	wMu sync.Mutex

	onTab func(nmFrame)
}

func newNMConn(in io.Reader, out io.Writer, onTab func(nmFrame)) *nmConn {
	return &nmConn{r: bufio.NewReader(in), w: out, onTab: onTab}
}

// ReadMessage blocks until a cdp_response or cdp_event frame arrives,
// translating it back into the plain {id,method,params,result,error}
// JSON shape cdp.Session's readLoop unmarshals. Tab-lifecycle frames are
// handled internally and never returned.
func (c *nmConn) ReadMessage() (int, []byte, error) {
	for {
		f, err := readNMFrame(c.r)
		if err != nil {
			return 0, nil, err
		}
		switch f.Type {
		case "cdp_response":
			out := struct {
				ID     int64           `json:"id"`
				Result json.RawMessage `json:"result,omitempty"`
				Error  *wireErrorShape `json:"error,omitempty"`
			}{ID: f.ID, Result: f.Result}
			if f.Error != nil {
				out.Error = &wireErrorShape{Message: *f.Error}
			}
			data, err := json.Marshal(out)
			if err != nil {
				return 0, nil, err
			}
			return websocket.TextMessage, data, nil
		case "cdp_event":
			out := struct {
				Method string          `json:"method"`
				Params json.RawMessage `json:"params,omitempty"`
			}{Method: f.Method, Params: f.Params}
			data, err := json.Marshal(out)
			if err != nil {
				return 0, nil, err
			}
			return websocket.TextMessage, data, nil
		case "tab_list", "tab_attached", "tab_detached":
			if c.onTab != nil {
				c.onTab(f)
			}
			continue
		default:
			continue
		}
	}
}

type wireErrorShape struct {
	Message string `json:"message"`
}

// WriteMessage wraps a Session-issued {id,method,params} request as a
// cdp_command frame.
func (c *nmConn) WriteMessage(_ int, data []byte) error {
	var in struct {
		ID     int64           `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params,omitempty"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return apierr.Wrap(err, apierr.CodeInvalidBody, "cannot frame outgoing cdp command")
	}
	return writeNMFrame(c.w, &c.wMu, nmFrame{Type: "cdp_command", ID: in.ID, Method: in.Method, Params: in.Params})
}

// Close is a no-op: the underlying stdio pipes belong to the host
// process that started the Native-Messaging host, not to this adapter.
func (c *nmConn) Close() error { return nil }
