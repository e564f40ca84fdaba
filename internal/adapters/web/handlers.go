package web

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"seva-invoicing/internal/app"
	"seva-invoicing/internal/logger"
	webui "seva-invoicing/web"
)

// Options configures the HTTP adapter.
type Options struct {
	AllowedOrigins string
	JWTSecret      string
	CookieSecure   bool
}

// Handler holds the ApplicationService, the chi router, and the submitted draft store.
type Handler struct {
	svc          app.ApplicationService
	router       chi.Router
	submitted    *submittedStore
	jwtSecret    string
	cookieSecure bool
	static       fs.FS
	fileServer   http.Handler
	log          zerolog.Logger
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, opts Options) http.Handler {
	staticFS, err := fs.Sub(webui.Static, "static")
	if err != nil {
		panic("web/static embed sub-FS failed: " + err.Error())
	}

	h := &Handler{
		svc:          svc,
		submitted:    newSubmittedStore(),
		jwtSecret:    opts.JWTSecret,
		cookieSecure: opts.CookieSecure,
		static:       staticFS,
		fileServer:   http.FileServer(http.FS(staticFS)),
		log:          logger.WithComponent("web"),
	}
	h.submitted.startPurge(context.Background())

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(opts.AllowedOrigins))

	// ── Public ───────────────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(64 << 10))
		r.Post("/api/auth/login", h.login)
		r.Post("/login", h.loginFormSubmit)
	})
	r.Post("/api/auth/logout", h.logout)
	r.Post("/logout", h.logoutPage)
	r.Get("/login", h.loginPage)
	r.Get("/static/*", func(w http.ResponseWriter, req *http.Request) {
		http.StripPrefix("/static", h.fileServer).ServeHTTP(w, req)
	})

	// ── Browser pages (redirect to /login if unauthenticated) ────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuthBrowser)
		for _, path := range []string{"/", "/invoices/new", "/history", "/analytics"} {
			r.Get(path, h.appShell)
		}
	})

	// ── API (401 JSON if unauthenticated) ────────────────────────────────────
	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(RequestBodyLimit(1 << 20))

		r.Get("/api/auth/me", h.me)

		r.Get("/api/invoices/draft", h.apiDraft)
		r.Get("/api/invoices/next-number", h.apiNextNumber)
		r.Get("/api/invoices/recent", h.apiRecentInvoices)
		r.Get("/api/invoices", h.apiListInvoices)
		r.Post("/api/invoices", h.apiCreateInvoice)
		r.Get("/api/invoices/{id}", h.apiGetInvoice)
		r.Delete("/api/invoices/{id}", h.apiDeleteInvoice)
		r.Get("/api/invoices/{id}/pdf", h.apiInvoicePDF)

		r.Get("/api/analytics", h.apiAnalytics)
	})

	h.router = r
	return r
}

// health returns service status and whether the file store is active.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.Health(r.Context()))
}

// appShell serves the single-page app for every browser route.
func (h *Handler) appShell(w http.ResponseWriter, r *http.Request) {
	h.serveStatic(w, r, "index.html")
}

func (h *Handler) serveStatic(w http.ResponseWriter, r *http.Request, name string) {
	page, err := fs.ReadFile(h.static, name)
	if err != nil {
		h.log.Error().Err(err).Str("file", name).Msg("static page missing")
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
