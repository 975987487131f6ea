package capture

import (
	"context"
	"encoding/json"

	"github.com/argus-dev/argus/internal/cdp"
)

// Pipelines bundles the console/exception and network normalizers behind
// a single source.Hooks.OnLog callback, so a watcher only needs to wire
// one function regardless of which CDP domains are enabled (spec.md
// §4.5). Network is nil when network capture is disabled for this
// watcher (spec.md §4.7 "net_disabled").
type Pipelines struct {
	Console *ConsolePipeline
	Network *NetworkPipeline

	Session func() *cdp.Session
}

// OnLog is wired as a source.Hooks.OnLog callback: it demultiplexes the
// forwarded CDP event by method name to the pipeline that normalizes it.
func (p *Pipelines) OnLog(method string, params []byte) {
	ctx := context.Background()
	switch method {
	case "Runtime.consoleAPICalled":
		if p.Console != nil {
			p.Console.HandleConsoleAPICalled(ctx, p.currentSession(), json.RawMessage(params))
		}
	case "Runtime.exceptionThrown":
		if p.Console != nil {
			p.Console.HandleExceptionThrown(ctx, p.currentSession(), json.RawMessage(params))
		}
	case "Network.requestWillBeSent":
		if p.Network != nil {
			p.Network.HandleRequestWillBeSent(params)
		}
	case "Network.responseReceived":
		if p.Network != nil {
			p.Network.HandleResponseReceived(params)
		}
	case "Network.loadingFinished":
		if p.Network != nil {
			p.Network.HandleLoadingFinished(params)
		}
	case "Network.loadingFailed":
		if p.Network != nil {
			p.Network.HandleLoadingFailed(params)
		}
	}
}

func (p *Pipelines) currentSession() *cdp.Session {
	if p.Session == nil {
		return nil
	}
	return p.Session()
}
