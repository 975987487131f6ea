// Package watcherproc implements the watcher process orchestrator
// (spec.md §4.8, C8): it wires the registry, buffers, source adapter,
// domops controllers, and HTTP API together into one running watcher,
// and owns its startup/attach/shutdown lifecycle.
package watcherproc

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/capture"
	"github.com/argus-dev/argus/internal/cdp"
	"github.com/argus-dev/argus/internal/config"
	"github.com/argus-dev/argus/internal/domops"
	"github.com/argus-dev/argus/internal/httpapi"
	"github.com/argus-dev/argus/internal/model"
	"github.com/argus-dev/argus/internal/redaction"
	"github.com/argus-dev/argus/internal/registry"
	"github.com/argus-dev/argus/internal/ring"
	"github.com/argus-dev/argus/internal/source"
	"github.com/argus-dev/argus/internal/util"
)

// Options configures a single watcher process (spec.md §4.8 "On start:
// validate options...").
type Options struct {
	ID string // empty picks a fresh uuid

	// Source selects the adapter: "cdp" (default) dials ChromeHost:
	// ChromePort directly; "extension" drives a browser extension over
	// the Native-Messaging stdio pipe NativeIn/NativeOut, for a watcher
	// launched by Chrome itself (spec.md §4.4, `watcher native-host`).
	Source string

	ChromeHost string
	ChromePort int
	Match      *model.TargetMatch

	NativeIn  io.Reader
	NativeOut io.Writer

	ListenHost string // default 127.0.0.1
	ListenPort int    // 0 => ephemeral

	Cwd string

	NetEnabled  bool
	LogCapacity int // default 50000
	NetCapacity int // default 5000

	BootScript string // optional Page.addScriptToEvaluateOnNewDocument source
}

func (o *Options) setDefaults() {
	if o.Source == "" {
		o.Source = "cdp"
	}
	if o.ListenHost == "" {
		o.ListenHost = "127.0.0.1"
	}
	if o.LogCapacity <= 0 {
		o.LogCapacity = 50000
	}
	if o.NetCapacity <= 0 {
		o.NetCapacity = 5000
	}
	if o.Source == "extension" {
		if o.NativeIn == nil {
			o.NativeIn = os.Stdin
		}
		if o.NativeOut == nil {
			o.NativeOut = os.Stdout
		}
	}
}

func (o Options) validate() error {
	switch o.Source {
	case "cdp":
		if o.ChromeHost == "" || o.ChromePort == 0 {
			return apierr.New(apierr.CodeInvalidBody, "chrome host/port are required")
		}
	case "extension":
		// NativeIn/NativeOut are defaulted in setDefaults.
	default:
		return apierr.New(apierr.CodeInvalidBody, "source must be cdp or extension")
	}
	return nil
}

// Orchestrator owns one watcher process's full lifecycle (spec.md §4.8).
type Orchestrator struct {
	id    string
	opts  Options
	store *registry.Store

	logs *ring.LogBuffer
	net  *ring.NetBuffer

	emulation *domops.EmulationController
	throttle  *domops.ThrottleController
	tracer    *domops.Tracer

	adapter  source.Adapter
	listener net.Listener
	server   *http.Server

	heartbeatCancel context.CancelFunc

	mu        sync.Mutex
	record    model.WatcherRecord
	attached  bool

	shutdownOnce sync.Once
}

// New constructs an Orchestrator; Start must be called to bring it up.
func New(opts Options, store *registry.Store) *Orchestrator {
	opts.setDefaults()
	id := opts.ID
	if id == "" {
		id = registry.NewID()
	}
	return &Orchestrator{
		id:        id,
		opts:      opts,
		store:     store,
		emulation: domops.NewEmulationController(),
		throttle:  domops.NewThrottleController(),
		tracer:    domops.NewTracer(),
	}
}

// ID returns the watcher's registry id.
func (o *Orchestrator) ID() string { return o.id }

// Start validates options, builds artifacts directories, buffers, the
// source adapter, starts the HTTP server, writes the resolved port into
// the record, announces to the registry, and starts the heartbeat
// (spec.md §4.8 "On start").
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.opts.validate(); err != nil {
		return err
	}
	for _, dir := range []func() (string, error){config.LogsDir, config.TracesDir, config.ScreenshotsDir} {
		d, err := dir()
		if err != nil {
			return apierr.Wrap(err, apierr.CodeInvalidBody, "cannot resolve artifacts directory")
		}
		if err := config.EnsureDir(d); err != nil {
			return apierr.Wrap(err, apierr.CodeInvalidBody, "cannot create artifacts directory")
		}
	}

	o.logs = ring.NewLogBuffer(o.opts.LogCapacity)
	if o.opts.NetEnabled {
		o.net = ring.NewNetBuffer(o.opts.NetCapacity)
	}

	console := &capture.ConsolePipeline{
		Buffer:   o.logs,
		Redactor: redaction.NewEngine(),
		PageURL: func() string {
			if m := o.currentRecord().Match; m != nil {
				return m.URLContains
			}
			return ""
		},
		PageTitle: func() string { return "" },
	}
	var network *capture.NetworkPipeline
	if o.net != nil {
		network = &capture.NetworkPipeline{Buffer: o.net}
	}
	pipelines := &capture.Pipelines{
		Console: console,
		Network: network,
		Session: func() *cdp.Session { return o.Session() },
	}

	hooks := source.Hooks{
		OnLog:    pipelines.OnLog,
		OnStatus: o.onStatus,
		OnAttach: o.onAttach,
		OnDetach: o.onDetach,
	}
	if o.opts.Source == "extension" {
		o.adapter = source.NewExtensionAdapter(o.opts.NativeIn, o.opts.NativeOut, hooks)
	} else {
		o.adapter = source.NewCDPAdapter(o.opts.ChromeHost, o.opts.ChromePort, hooks)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", o.opts.ListenHost, o.opts.ListenPort))
	if err != nil {
		return apierr.Wrap(err, apierr.CodeConnectFailed, "cannot bind watcher HTTP listener")
	}
	o.listener = listener
	resolvedPort := listener.Addr().(*net.TCPAddr).Port

	deps := &httpapi.Deps{
		Session:         o.Session,
		Record:          o.currentRecord,
		Logs:            o.logs,
		Net:             o.net,
		Emulation:       o.emulation,
		Throttle:        o.throttle,
		Tracer:          o.tracer,
		NetEnabled:      func() bool { return o.opts.NetEnabled },
		RequestShutdown: func() { _ = o.Shutdown(context.Background()) },
		OnHTTPRequest: func(method, path string, status int, dur time.Duration) {
			log.Debug().Str("method", method).Str("path", path).Int("status", status).Dur("dur", dur).Msg("HttpRequestEvent")
		},
	}
	router := httpapi.NewRouter(deps)
	o.server = &http.Server{Handler: router}
	util.SafeGo(func() {
		if err := o.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("watcher HTTP server stopped unexpectedly")
		}
	})

	now := time.Now().UnixMilli()
	rec := model.WatcherRecord{
		ID:        o.id,
		Host:      o.opts.ListenHost,
		Port:      resolvedPort,
		PID:       os.Getpid(),
		Cwd:       o.opts.Cwd,
		StartedAt: now,
		UpdatedAt: now,
		Match:     o.opts.Match,
		Source:    o.opts.Source,
	}
	if o.opts.Source == "cdp" {
		rec.Chrome = &model.ChromeAddress{Host: o.opts.ChromeHost, Port: o.opts.ChromePort}
	}
	o.setRecord(rec)

	if err := o.store.Announce(rec, o.isRecordReachable); err != nil {
		o.server.Close()
		return err
	}

	hbCtx, cancel := context.WithCancel(context.Background())
	o.heartbeatCancel = cancel
	registry.StartHeartbeat(hbCtx, o.store, o.id, registry.DefaultHeartbeatInterval)

	if err := o.adapter.AttachTarget(ctx, o.opts.Match); err != nil {
		return err
	}

	return nil
}

// Session exposes the adapter's current CDP session, or nil.
func (o *Orchestrator) Session() *cdp.Session {
	if o.adapter == nil {
		return nil
	}
	return o.adapter.Session()
}

func (o *Orchestrator) currentRecord() model.WatcherRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.record
}

func (o *Orchestrator) setRecord(rec model.WatcherRecord) {
	o.mu.Lock()
	o.record = rec
	o.mu.Unlock()
}

func (o *Orchestrator) onStatus(status string) {
	log.Info().Str("watcherId", o.id).Str("status", status).Msg("watcher status")
}

// onAttach runs emulation/throttle reapply, optional boot-script
// injection, and flips the attached flag — completing before any
// operator call against the new session is observable to HTTP handlers
// (spec.md §5 "Ordering guarantees", §4.8 "On attach").
func (o *Orchestrator) onAttach(session *cdp.Session) {
	ctx := context.Background()
	o.emulation.OnAttach(ctx, session)
	o.throttle.OnAttach(ctx, session)
	if o.net != nil {
		if _, err := session.SendAndWait(ctx, "Network.enable", map[string]any{}, cdp.DefaultTimeout); err != nil {
			log.Warn().Err(err).Msg("network enable failed")
		}
	}
	if o.opts.BootScript != "" {
		if _, err := session.SendAndWait(ctx, "Page.addScriptToEvaluateOnNewDocument", map[string]any{
			"source": o.opts.BootScript,
		}, cdp.DefaultTimeout); err != nil {
			log.Warn().Err(err).Msg("boot script injection failed")
		}
	}
	o.mu.Lock()
	o.attached = true
	o.mu.Unlock()
}

// onDetach marks the watcher detached and aborts any in-flight trace
// capture (spec.md §4.8 "On onDetach ... trace recorder aborts
// in-flight traces").
func (o *Orchestrator) onDetach(reason error) {
	o.mu.Lock()
	o.attached = false
	o.mu.Unlock()
	o.emulation.OnDetach()
	o.throttle.OnDetach()
	o.tracer.Abort()
}

func (o *Orchestrator) isRecordReachable(rec model.WatcherRecord) bool {
	addr := fmt.Sprintf("%s:%d", rec.Host, rec.Port)
	conn, err := net.DialTimeout("tcp", addr, 300*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Shutdown runs the graceful-close sequence idempotently (spec.md §4.8
// "On shutdown: stop heartbeat, stop the adapter ... close file writers,
// stop the HTTP server, remove the registry entry, idempotently").
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	var err error
	o.shutdownOnce.Do(func() {
		if o.heartbeatCancel != nil {
			o.heartbeatCancel()
		}
		if o.adapter != nil {
			if stopErr := o.adapter.Stop(); stopErr != nil {
				log.Warn().Err(stopErr).Msg("adapter stop failed")
			}
		}
		o.tracer.Abort()
		if o.server != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			if srvErr := o.server.Shutdown(shutdownCtx); srvErr != nil {
				err = srvErr
			}
		}
		if removeErr := o.store.Remove(o.id); removeErr != nil {
			log.Warn().Err(removeErr).Msg("registry remove failed during shutdown")
		}
	})
	return err
}
