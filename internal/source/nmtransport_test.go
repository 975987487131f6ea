package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sync"
	"testing"
)

func TestNMFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	var mu sync.Mutex
	want := nmFrame{Type: "cdp_command", ID: 7, Method: "Runtime.enable"}
	if err := writeNMFrame(&buf, &mu, want); err != nil {
		t.Fatalf("writeNMFrame: %v", err)
	}

	got, err := readNMFrame(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("readNMFrame: %v", err)
	}
	if got.Type != want.Type || got.ID != want.ID || got.Method != want.Method {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestNMConnTranslatesCDPResponseAndEvent(t *testing.T) {
	var pipe bytes.Buffer
	var mu sync.Mutex
	writeNMFrame(&pipe, &mu, nmFrame{Type: "cdp_response", ID: 1, Result: json.RawMessage(`{"ok":true}`)})
	writeNMFrame(&pipe, &mu, nmFrame{Type: "cdp_event", Method: "Page.loadEventFired", Params: json.RawMessage(`{}`)})

	var tabFrames []nmFrame
	conn := newNMConn(&pipe, &bytes.Buffer{}, func(f nmFrame) { tabFrames = append(tabFrames, f) })

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage (response): %v", err)
	}
	var resp struct {
		ID     int64           `json:"id"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil || resp.ID != 1 {
		t.Fatalf("got %s, err %v; want translated response with id 1", data, err)
	}

	_, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage (event): %v", err)
	}
	var evt struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(data, &evt); err != nil || evt.Method != "Page.loadEventFired" {
		t.Fatalf("got %s, err %v; want translated event", data, err)
	}
}

func TestNMConnDivertsTabFrames(t *testing.T) {
	var pipe bytes.Buffer
	var mu sync.Mutex
	writeNMFrame(&pipe, &mu, nmFrame{Type: "tab_list", Tabs: []nmTabInfo{{ID: "1", Title: "Tab"}}})
	writeNMFrame(&pipe, &mu, nmFrame{Type: "cdp_event", Method: "Page.loadEventFired"})

	var seen []nmFrame
	conn := newNMConn(&pipe, &bytes.Buffer{}, func(f nmFrame) { seen = append(seen, f) })

	_, _, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if len(seen) != 1 || seen[0].Type != "tab_list" {
		t.Fatalf("got %+v, want tab_list diverted before the event is returned", seen)
	}
}

func TestNMConnWriteMessageWrapsAsCDPCommand(t *testing.T) {
	var out bytes.Buffer
	conn := newNMConn(&bytes.Buffer{}, &out, nil)

	req := struct {
		ID     int64  `json:"id"`
		Method string `json:"method"`
	}{ID: 3, Method: "Runtime.enable"}
	data, _ := json.Marshal(req)
	if err := conn.WriteMessage(0, data); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	f, err := readNMFrame(bufio.NewReader(&out))
	if err != nil {
		t.Fatalf("readNMFrame: %v", err)
	}
	if f.Type != "cdp_command" || f.ID != 3 || f.Method != "Runtime.enable" {
		t.Fatalf("got %+v, want wrapped cdp_command frame", f)
	}
}
