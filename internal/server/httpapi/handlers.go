// Package httpapi exposes the portal's HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/docportal/internal/convert"
	"github.com/and161185/docportal/internal/errs"
	"github.com/and161185/docportal/internal/obs"
	"github.com/and161185/docportal/internal/service"
)

// Pinger reports backing-store readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options tune the HTTP surface.
type Options struct {
	AllowedOrigins []string
	MaxBodyBytes   int64
	Version        string
}

// API wires services into HTTP handlers.
type API struct {
	mux      *http.ServeMux
	sessions service.SessionService
	docs     service.DocumentService
	ready    Pinger
	metrics  *obs.Metrics
	log      *zap.Logger
	opts     Options
}

// New constructs the API and registers its routes.
func New(sessions service.SessionService, docs service.DocumentService, ready Pinger, metrics *obs.Metrics, log *zap.Logger, opts Options) *API {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = obs.NewMetrics(nil)
	}
	a := &API{
		mux:      http.NewServeMux(),
		sessions: sessions,
		docs:     docs,
		ready:    ready,
		metrics:  metrics,
		log:      log,
		opts:     opts,
	}

	a.handle("POST /login", a.login)
	a.handle("POST /logout", a.logout)
	a.handle("GET /documents", a.requireSession(a.listDocuments))
	a.handle("POST /generate-pdf-token", a.requireSession(a.generatePDFToken))
	a.handle("GET /pdf/{token}", a.viewPDF)

	a.handle("GET /healthz", a.healthz)
	a.handle("GET /readyz", a.readyz)
	a.mux.Handle("GET /metrics", metrics.Handler())
	return a
}

func (a *API) handle(pattern string, h http.HandlerFunc) {
	a.mux.Handle(pattern, a.metrics.Instrument(pattern, h))
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	return Chain(a.mux,
		Recover(a.log),
		Logging(a.log),
		SecurityHeaders,
		CORS(a.opts.AllowedOrigins),
		MaxBodyBytes(a.opts.MaxBodyBytes),
	)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	tok, err := a.sessions.Login(r.Context(), req.Username, req.Password, clientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, errs.ErrUnauthorized):
			writeMessage(w, http.StatusUnauthorized, "Invalid username or password")
		case errors.Is(err, errs.ErrRateLimited):
			writeMessage(w, http.StatusTooManyRequests, "Too many attempts, try again later")
		default:
			a.log.Error("login", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorBody{Message: "Login failed", Error: err.Error()})
		}
		return
	}
	a.metrics.TokenIssued("session")
	noStore(w)
	writeJSON(w, http.StatusOK, loginResponse{Token: tok.AccessToken, Username: req.Username, ExpiresAt: tok.ExpiresAt})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if tok, ok := extractBearerToken(r.Header.Get("Authorization")); ok {
		a.sessions.Logout(r.Context(), tok)
	}
	writeMessage(w, http.StatusOK, "Logged out successfully")
}

func (a *API) listDocuments(w http.ResponseWriter, r *http.Request) {
	p, _ := PrincipalFromCtx(r.Context())
	docs, err := a.docs.List(r.Context(), p.Username)
	if err != nil {
		if !isDomainError(err) {
			a.log.Error("fetching documents", zap.Error(err))
		}
		writeServiceError(w, err, "Database query failed")
		return
	}
	noStore(w)
	writeJSON(w, http.StatusOK, convert.ToDocumentsJSON(docs))
}

type pdfTokenRequest struct {
	DocID json.Number `json:"docId"`
}

type pdfTokenResponse struct {
	PDFToken string `json:"pdfToken"`
}

func (a *API) generatePDFToken(w http.ResponseWriter, r *http.Request) {
	var req pdfTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	docID, err := strconv.ParseInt(req.DocID.String(), 10, 64)
	if err != nil || docID <= 0 {
		writeMessage(w, http.StatusBadRequest, "docId must be a positive integer")
		return
	}
	tok, _ := SessionTokenFromCtx(r.Context())
	g, err := a.docs.IssueResourceToken(r.Context(), tok, docID)
	if err != nil {
		if !isDomainError(err) {
			a.log.Error("issuing resource token", zap.Int64("docId", docID), zap.Error(err))
		}
		writeServiceError(w, err, "Database query failed")
		return
	}
	a.metrics.TokenIssued("resource")
	noStore(w)
	writeJSON(w, http.StatusOK, pdfTokenResponse{PDFToken: g.Token})
}

func (a *API) viewPDF(w http.ResponseWriter, r *http.Request) {
	f, err := a.docs.Fetch(r.Context(), r.PathValue("token"))
	if err != nil {
		a.metrics.Fetch(fetchOutcome(err))
		if !isDomainError(err) {
			a.log.Error("fetching pdf", zap.Error(err))
		}
		writeServiceError(w, err, "Failed to fetch PDF")
		return
	}
	a.metrics.Fetch("ok")
	noStore(w)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", contentDisposition(f.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Payload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Payload)
}

func (a *API) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": a.opts.Version})
}

func (a *API) readyz(w http.ResponseWriter, r *http.Request) {
	if a.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.ready.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func isDomainError(err error) bool {
	for _, s := range []error{
		errs.ErrUnauthorized, errs.ErrUnauthorizedRole, errs.ErrAccessDenied,
		errs.ErrInvalidOrExpired, errs.ErrNoLongerValid, errs.ErrNotFoundOrDenied,
	} {
		if errors.Is(err, s) {
			return true
		}
	}
	return false
}

func fetchOutcome(err error) string {
	switch {
	case errors.Is(err, errs.ErrInvalidOrExpired):
		return "invalid"
	case errors.Is(err, errs.ErrNoLongerValid):
		return "no_longer_valid"
	case errors.Is(err, errs.ErrNotFoundOrDenied):
		return "not_found"
	case errors.Is(err, errs.ErrUnauthorizedRole):
		return "denied"
	default:
		return "error"
	}
}

// clientIP returns the peer host used for login throttling.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
