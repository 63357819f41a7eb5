// Package server exposes stored scan results over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/hootmeow/openvas-strix/internal/auth"
	"github.com/hootmeow/openvas-strix/internal/config"
	"github.com/hootmeow/openvas-strix/internal/ingest"
	"github.com/hootmeow/openvas-strix/internal/models"
	"github.com/hootmeow/openvas-strix/internal/sampledata"
	"github.com/hootmeow/openvas-strix/internal/storage"
)

const maxUploadSize = 200 << 20

// Ingester is the part of ingest.Ingester the server needs.
type Ingester interface {
	ProcessReader(ctx context.Context, r io.Reader, name, source string) (*models.Scan, error)
	ProcessFile(ctx context.Context, path string) (*models.Scan, error)
}

type Server struct {
	store    storage.Store
	ingest   Ingester
	cfg      *config.Config
	sessions *auth.SessionManager
	authn    auth.Authenticator
	log      logrus.FieldLogger
}

type Option func(*Server)

// WithAuthenticator replaces the LDAP authenticator built from config.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(s *Server) { s.authn = a }
}

func New(store storage.Store, ing Ingester, cfg *config.Config, log logrus.FieldLogger, opts ...Option) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		store:  store,
		ingest: ing,
		cfg:    cfg,
		log:    log.WithField("component", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Auth.Enabled {
		s.sessions = auth.NewSessionManager(cfg.Auth.SessionMinutes)
		if s.authn == nil {
			s.authn = auth.NewLDAPAuthenticator(cfg.Auth)
		}
	}
	return s
}

// Handler returns the routed API, wrapped with auth when enabled.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.cfg.Auth.Enabled {
		mux.HandleFunc("POST /login", s.handleLogin)
		mux.HandleFunc("POST /logout", s.handleLogout)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/hosts", s.handleHosts)
	mux.HandleFunc("GET /api/hosts/{id}", s.handleHostDetails)
	mux.HandleFunc("GET /api/vulns", s.handleVulns)
	mux.HandleFunc("GET /api/scans", s.handleScans)
	mux.HandleFunc("GET /api/scans/{id}", s.handleScanDetails)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /admin/generate", s.handleGenerateData)

	if !s.cfg.Auth.Enabled {
		return mux
	}
	return auth.NewMiddleware(s.sessions, []string{"/login", "/logout", "/healthz"}).Wrap(mux)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if s.cfg.TLS.Enabled {
			s.log.WithField("port", s.cfg.Server.Port).Info("Starting HTTPS server")
			errCh <- srv.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
			return
		}
		s.log.WithField("port", s.cfg.Server.Port).Info("Starting HTTP server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close releases the session manager.
func (s *Server) Close() {
	if s.sessions != nil {
		s.sessions.Stop()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type stats struct {
	Hosts      int64            `json:"hosts"`
	Vulns      int64            `json:"vulns"`
	BySeverity map[string]int64 `json:"by_severity"`
	LastScan   *models.Scan     `json:"last_scan,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var out stats
	var err error
	if out.Hosts, err = s.store.GetHostCount(); err != nil {
		s.dbError(w, err)
		return
	}
	if out.Vulns, err = s.store.GetVulnCount(""); err != nil {
		s.dbError(w, err)
		return
	}
	out.BySeverity = make(map[string]int64)
	for _, sev := range []string{"Critical", "High", "Medium", "Low", "False Positive"} {
		n, err := s.store.GetVulnCount(sev)
		if err != nil {
			s.dbError(w, err)
			return
		}
		out.BySeverity[sev] = n
	}

	scans, err := s.store.GetScans()
	if err != nil {
		s.dbError(w, err)
		return
	}
	if len(scans) > 0 {
		out.LastScan = &scans[0]
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := s.store.GetHosts()
	if err != nil {
		s.dbError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hosts)
}

func (s *Server) handleHostDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	host, err := s.store.GetHost(id)
	if err != nil {
		s.lookupError(w, err)
		return
	}
	vulns, err := s.store.GetVulnerabilitiesForHost(id)
	if err != nil {
		s.dbError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Host            *models.Host           `json:"host"`
		Vulnerabilities []models.Vulnerability `json:"vulnerabilities"`
	}{host, vulns})
}

func (s *Server) handleVulns(w http.ResponseWriter, r *http.Request) {
	vulns, err := s.store.GetVulnerabilities(r.URL.Query().Get("severity"))
	if err != nil {
		s.dbError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vulns)
}

func (s *Server) handleScans(w http.ResponseWriter, r *http.Request) {
	scans, err := s.store.GetScans()
	if err != nil {
		s.dbError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scans)
}

func (s *Server) handleScanDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	scan, err := s.store.GetScan(id)
	if err != nil {
		s.lookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload")
		return
	}

	file, header, err := r.FormFile("scanfile")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing scanfile")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	scan, err := s.ingest.ProcessReader(r.Context(), file, name, ingest.SourceUpload)
	if err != nil {
		s.log.WithError(err).WithField("file", name).Error("Upload ingestion failed")
		writeError(w, http.StatusUnprocessableEntity, "failed to ingest report")
		return
	}

	s.audit(r, "upload", scan.ReportID, name)
	writeJSON(w, http.StatusCreated, scan)
}

func (s *Server) handleGenerateData(w http.ResponseWriter, r *http.Request) {
	dir := filepath.Join(s.cfg.Plugin.DataDir, "samples")
	paths, err := sampledata.Generate(dir)
	if err != nil {
		s.log.WithError(err).Error("Failed to generate sample data")
		writeError(w, http.StatusInternalServerError, "failed to generate data")
		return
	}

	var scans []*models.Scan
	for _, p := range paths {
		scan, err := s.ingest.ProcessFile(r.Context(), p)
		if err != nil {
			s.log.WithError(err).WithField("file", p).Error("Failed to ingest sample file")
			continue
		}
		scans = append(scans, scan)
	}

	s.audit(r, "generate_sample_data", dir, strconv.Itoa(len(scans))+" scans")
	writeJSON(w, http.StatusCreated, scans)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if isJSON(r) {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
	}

	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}

	user, err := s.authn.Authenticate(req.Username, req.Password)
	if err != nil {
		s.log.WithError(err).WithField("user", req.Username).Warn("Login failed")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	sessionID, err := s.sessions.Create(user)
	if err != nil {
		s.log.WithError(err).Error("Failed to create session")
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.TLS.Enabled,
		SameSite: http.SameSiteLaxMode,
	})
	s.auditUser(r, user.Username, "login", "", "")
	writeJSON(w, http.StatusOK, user)
}

// isJSON reports whether the request body is JSON, ignoring media type
// parameters such as charset.
func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.CookieName); err == nil && cookie.Value != "" {
		if session, ok := s.sessions.Get(cookie.Value); ok {
			s.auditUser(r, session.User.Username, "logout", "", "")
		}
		s.sessions.Delete(cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

// currentUser returns the logged in user name, or "anonymous" without auth.
func (s *Server) currentUser(r *http.Request) string {
	if session := auth.GetSessionContext(r); session != nil && session.User != nil {
		return session.User.Username
	}
	return "anonymous"
}

func (s *Server) audit(r *http.Request, action, target, details string) {
	s.auditUser(r, s.currentUser(r), action, target, details)
}

func (s *Server) auditUser(r *http.Request, user, action, target, details string) {
	entry := &models.AuditLog{
		User:      user,
		Action:    action,
		Target:    target,
		Details:   details,
		IPAddress: r.RemoteAddr,
	}
	if err := s.store.CreateAuditLog(entry); err != nil {
		s.log.WithError(err).WithField("action", action).Error("Failed to write audit log")
	}
}

func (s *Server) dbError(w http.ResponseWriter, err error) {
	s.log.WithError(err).Error("Database error")
	writeError(w, http.StatusInternalServerError, "database error")
}

func (s *Server) lookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	s.dbError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return uint(id), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
