package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog/v3"
	"golang.org/x/time/rate"

	"github.com/argus-dev/argus/internal/apierr"
)

// NewRouter builds the watcher's loopback HTTP API (spec.md §4.7),
// grounded on joeychilson-websurfer's NewServer: chi.NewRouter with
// RequestID/RealIP/Recoverer plus request logging, extended with a
// coarse httprate cap and per-client token buckets on the two routes
// expensive enough to need burst shaping.
func NewRouter(deps *Deps) *chi.Mux {
	r := chi.NewRouter()

	logger := httplog.NewLogger("argus-watcher", httplog.Options{
		JSON:     true,
		LogLevel: slog.LevelInfo,
		Concise:  true,
	})

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httplog.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(eventMiddleware(deps))
	r.Use(coarseRateLimit())

	h := &handler{deps: deps}

	// /screenshot and /eval get an additional per-client token bucket
	// (spec.md §4.7; SPEC_FULL.md domain stack: "x/time/rate ... per-client
	// token-bucket limiter in front of /screenshot and /eval").
	expensive := newClientBuckets(rate.Limit(2), 4)

	r.Get("/status", h.status)
	r.Get("/logs", h.logs)
	r.Get("/net", h.net)
	r.Get("/tail", h.tail)
	r.Get("/net/tail", h.netTail)
	r.Post("/shutdown", h.shutdown)
	r.Post("/reload", h.reload)

	r.With(tokenBucketMiddleware(expensive)).Post("/eval", h.eval)
	r.With(tokenBucketMiddleware(expensive)).Post("/screenshot", h.screenshot)

	r.Route("/dom", func(dr chi.Router) {
		dr.Post("/tree", h.domTree)
		dr.Post("/info", h.domInfo)
		dr.Post("/hover", h.domHover)
		dr.Post("/click", h.domClick)
		dr.Post("/focus", h.domFocus)
		dr.Post("/keydown", h.domKeyDown)
		dr.Post("/add", h.domAdd)
		dr.Post("/add-script", h.domAddScript)
		dr.Post("/remove", h.domRemove)
		dr.Post("/scroll", h.domScroll)
		dr.Post("/scroll-to", h.domScrollTo)
		dr.Post("/fill", h.domFill)
		dr.Post("/set-file", h.domSetFile)
		dr.Post("/modify", h.domModify)
	})

	r.Post("/storage/local", h.storageLocal)
	r.Post("/emulation", h.emulation)
	r.Post("/throttle", h.throttle)
	r.Route("/trace", func(tr chi.Router) {
		tr.Post("/start", h.traceStart)
		tr.Post("/stop", h.traceStop)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierr.WriteError(w, apierr.New(apierr.CodeNotFound, "no such route"))
	})

	return r
}
