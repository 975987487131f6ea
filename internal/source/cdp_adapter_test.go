package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/argus-dev/argus/internal/model"
)

// fakeCDPServer answers Runtime.enable/Page.enable/Runtime.evaluate with
// canned replies over a single WebSocket connection, enough to exercise
// CDPAdapter's attach sequence without a real browser.
func fakeCDPServer(t *testing.T) (wsURL string, targetsURL string, closeFn func()) {
	t.Helper()
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/devtools/page/1", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req struct {
				ID     int64  `json:"id"`
				Method string `json:"method"`
			}
			if err := json.Unmarshal(data, &req); err != nil {
				continue
			}
			reply := map[string]any{"id": req.ID, "result": map[string]any{}}
			if req.Method == "Runtime.evaluate" {
				reply["result"] = map[string]any{
					"result": map[string]any{
						"value": `{"language":"en-US","timezone":"UTC"}`,
					},
				}
			}
			out, _ := json.Marshal(reply)
			conn.WriteMessage(websocket.TextMessage, out)
		}
	})

	srv := httptest.NewServer(mux)
	wsBase := "ws" + strings.TrimPrefix(srv.URL, "http")

	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]string{
			{"id": "1", "type": "page", "title": "Test", "url": "https://example.com", "webSocketDebuggerUrl": wsBase + "/devtools/page/1"},
		})
	})

	return wsBase + "/devtools/page/1", srv.URL, srv.Close
}

func TestCDPAdapterAttachTargetRunsAttachSequence(t *testing.T) {
	_, targetsURL, closeFn := fakeCDPServer(t)
	defer closeFn()

	host, port := splitHostPort(t, targetsURL)

	var mu sync.Mutex
	var statuses []string
	var language string

	hooks := Hooks{
		OnStatus: func(s string) {
			mu.Lock()
			statuses = append(statuses, s)
			mu.Unlock()
		},
		OnPageIntl: func(lang, tz string) {
			mu.Lock()
			language = lang
			mu.Unlock()
			_ = tz
		},
	}

	a := NewCDPAdapter(host, port, hooks)
	if err := a.AttachTarget(context.Background(), &model.TargetMatch{}); err != nil {
		t.Fatalf("AttachTarget: %v", err)
	}
	defer a.Stop()

	waitForCondition(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(statuses) > 0 && statuses[len(statuses)-1] == "attached"
	})

	mu.Lock()
	defer mu.Unlock()
	if language != "en-US" {
		t.Fatalf("got language %q, want en-US", language)
	}
	if a.Session() == nil {
		t.Fatal("expected a live session after attach")
	}
}

func splitHostPort(t *testing.T, url string) (string, int) {
	t.Helper()
	// url looks like http://127.0.0.1:PORT
	rest := strings.TrimPrefix(url, "http://")
	idx := strings.LastIndex(rest, ":")
	if idx < 0 {
		t.Fatalf("unexpected test server URL %q", url)
	}
	port, err := strconv.Atoi(rest[idx+1:])
	if err != nil {
		t.Fatalf("bad port in %q: %v", url, err)
	}
	return rest[:idx], port
}
