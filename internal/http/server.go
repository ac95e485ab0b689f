package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"salvadanaio/internal/catalog"
	"salvadanaio/internal/identity"
	applog "salvadanaio/internal/log"
	"salvadanaio/internal/mascots"
	"salvadanaio/internal/middleware/ratelimit"
	"salvadanaio/internal/middleware/security"
	"salvadanaio/internal/middleware/trace"
	"salvadanaio/internal/selection"
	"salvadanaio/internal/services"
	appweb "salvadanaio/web"
)

const readyTimeout = 2 * time.Second

// Config wires the server to the mascot service.
type Config struct {
	Addr     string
	Service  *services.MascotService
	Subjects identity.SubjectResolver
	// Ready reports whether the preference store can be reached. Nil means
	// always ready.
	Ready              func(context.Context) error
	Logger             *applog.Logger
	RateLimitPerMinute int
}

// Server is the HTTP front end of the mascot editor.
type Server struct {
	http.Server

	svc       *services.MascotService
	subjects  identity.SubjectResolver
	ready     func(context.Context) error
	logger    *applog.Logger
	templates *template.Template
	limiter   *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and builds the route table.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("http server: nil mascot service")
	}
	if cfg.Logger == nil {
		cfg.Logger = applog.Discard()
	}

	t, err := template.New("").Funcs(template.FuncMap{"label": itemLabel}).
		ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	logger := cfg.Logger.WithComponent(applog.ComponentHTTP)
	s := &Server{
		svc:       cfg.Service,
		subjects:  cfg.Subjects,
		ready:     cfg.Ready,
		logger:    logger,
		templates: t,
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
	}

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /mascots", s.handleEditor)
	mux.HandleFunc("POST /mascots/select", s.handleMutation(applog.OpSelect))
	mux.HandleFunc("POST /mascots/remove", s.handleMutation(applog.OpRemove))
	mux.HandleFunc("POST /mascots/reset", s.handleResetPartial)
	mux.HandleFunc("GET /nav/mascots", s.handleNav)

	mux.HandleFunc("GET /api/mascots", s.handleAPIEditor)
	mux.HandleFunc("POST /api/mascots/select", s.handleAPIMutation(applog.OpSelect))
	mux.HandleFunc("POST /api/mascots/remove", s.handleAPIMutation(applog.OpRemove))
	mux.HandleFunc("DELETE /api/mascots", s.handleAPIReset)
	mux.HandleFunc("GET /api/nav/mascots", s.handleAPINav)

	clientIP := security.NewClientIPResolver().ClientIP
	limited := s.limiter.Middleware(clientIP, s.onRateLimited, http.MethodPost, http.MethodDelete)(mux)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(limited)
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           trace.NewMiddleware(logger, clientIP).Middleware(headers),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Shutdown stops the rate limiter and gracefully shuts down the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldMethod, r.Method, applog.FieldPath, r.URL.Path)
	TooManyRequestsError("Too many changes, please wait a minute").Write(w)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewHTMXResponse().BodyString("ok").Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	NewHTMXResponse().BodyString("ready").Write(w)
}

type editorData struct {
	services.EditorView
	Min int
	Max int
}

func (s *Server) editorData(r *http.Request, subject mascots.Subject) editorData {
	return editorData{
		EditorView: s.svc.Editor(r.Context(), subject),
		Min:        selection.MinSelected,
		Max:        selection.MaxSelected,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	subject := s.subjects.Subject(w, r)
	s.render(w, r, "index.html", s.editorData(r, subject), NewHTMXResponse())
}

func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	subject := s.subjects.Subject(w, r)
	s.render(w, r, "editor", s.editorData(r, subject), NewHTMXResponse())
}

func (s *Server) handleNav(w http.ResponseWriter, r *http.Request) {
	subject := s.subjects.Subject(w, r)
	items := s.svc.Navigation(r.Context(), subject, parseLimit(r))
	s.render(w, r, "nav", items, NewHTMXResponse())
}

// handleMutation serves the editor buttons. Accepted changes re-render the
// editor; refusals answer 409 with a notification.
func (s *Server) handleMutation(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := s.subjects.Subject(w, r)
		id, ok := itemID(w, r)
		if !ok {
			BadRequestError("Missing mascot id").Write(w)
			return
		}

		res, err := s.mutate(r.Context(), op, subject, id)
		if err != nil {
			page, _, msg := s.mutationError(r, err)
			page.TriggerErrorNotification(msg).Write(w)
			return
		}
		if !res.Changed() {
			msg := res.Outcome.Message()
			ErrorResponse(http.StatusConflict, msg).
				TriggerMascotsRefused(string(res.Outcome)).
				TriggerErrorNotification(msg).
				Write(w)
			return
		}
		s.render(w, r, "editor", s.editorData(r, subject), NewHTMXResponse().TriggerMascotsChanged())
	}
}

func (s *Server) handleResetPartial(w http.ResponseWriter, r *http.Request) {
	subject := s.subjects.Subject(w, r)
	if err := s.svc.Reset(r.Context(), subject); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Reset failed", applog.FieldSubject, subject.Key(), applog.FieldError, err)
		InternalServerError("Could not restore the defaults").TriggerErrorNotification("Could not restore the defaults").Write(w)
		return
	}
	s.render(w, r, "editor", s.editorData(r, subject),
		NewHTMXResponse().TriggerMascotsChanged().TriggerSuccessNotification("Defaults restored"))
}

func (s *Server) handleAPIEditor(w http.ResponseWriter, r *http.Request) {
	subject := s.subjects.Subject(w, r)
	writeJSON(w, r, http.StatusOK, s.svc.Editor(r.Context(), subject))
}

func (s *Server) handleAPIMutation(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subject := s.subjects.Subject(w, r)
		id, ok := itemID(w, r)
		if !ok {
			writeJSON(w, r, http.StatusBadRequest, apiError{Error: "missing mascot id"})
			return
		}
		res, err := s.mutate(r.Context(), op, subject, id)
		if err != nil {
			_, status, msg := s.mutationError(r, err)
			writeJSON(w, r, status, apiError{Error: msg})
			return
		}
		status := http.StatusOK
		if !res.Changed() {
			status = http.StatusConflict
		}
		writeJSON(w, r, status, res)
	}
}

func (s *Server) handleAPIReset(w http.ResponseWriter, r *http.Request) {
	subject := s.subjects.Subject(w, r)
	if err := s.svc.Reset(r.Context(), subject); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Reset failed", applog.FieldSubject, subject.Key(), applog.FieldError, err)
		writeJSON(w, r, http.StatusInternalServerError, apiError{Error: "reset failed"})
		return
	}
	writeJSON(w, r, http.StatusOK, s.svc.Editor(r.Context(), subject))
}

func (s *Server) handleAPINav(w http.ResponseWriter, r *http.Request) {
	subject := s.subjects.Subject(w, r)
	items := s.svc.Navigation(r.Context(), subject, parseLimit(r))
	if items == nil {
		items = []catalog.Item{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) mutate(ctx context.Context, op string, subject mascots.Subject, id string) (services.MutationResult, error) {
	if op == applog.OpRemove {
		return s.svc.Remove(ctx, subject, id)
	}
	return s.svc.Select(ctx, subject, id)
}

// mutationError maps engine errors to an error page, its status and a
// user-facing message.
func (s *Server) mutationError(r *http.Request, err error) (*HTMXResponseBuilder, int, string) {
	switch {
	case errors.Is(err, mascots.ErrUnknownItem):
		const msg = "Unknown mascot"
		return UnprocessableEntityError(msg), http.StatusUnprocessableEntity, msg
	case errors.Is(err, mascots.ErrNotReady), errors.Is(err, mascots.ErrSessionClosed):
		const msg = "Selection is loading, try again"
		return ServiceUnavailableError(msg), http.StatusServiceUnavailable, msg
	}
	applog.FromContext(r.Context()).ErrorContext(r.Context(), "Selection change failed", applog.FieldError, err)
	const msg = "Unexpected error"
	return InternalServerError(msg), http.StatusInternalServerError, msg
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any, b *HTMXResponseBuilder) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed", "template", name, applog.FieldError, err)
		InternalServerError("Rendering failed").Write(w)
		return
	}
	b.BodyHTML(buf.String()).Write(w)
}
