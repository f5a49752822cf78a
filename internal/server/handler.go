package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/marmos91/sharegate/internal/upload"
	"github.com/marmos91/sharegate/pkg/metrics"
	"github.com/marmos91/sharegate/pkg/share"
	"github.com/marmos91/sharegate/pkg/store/blob"
	sharestore "github.com/marmos91/sharegate/pkg/store/share"
)

// routes assembles the full handler tree.
//
// Share downloads, health, and metrics sit outside the credential gate;
// everything else goes through it. Rate limiting and request metrics wrap
// the whole tree.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.cfg.Metrics.Enabled && metrics.IsEnabled() {
		mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}
	mux.HandleFunc("GET /s/{token}", s.handleShareDownload)

	protected := http.NewServeMux()
	protected.HandleFunc("GET /{$}", s.handleIndex)
	protected.HandleFunc("POST /{$}", s.handleUpload)
	protected.HandleFunc("POST /api/shares", s.handleMintShare)
	protected.HandleFunc("GET /api/shares", s.handleListShares)
	protected.HandleFunc("DELETE /api/shares/{token}", s.handleRevokeShare)
	protected.HandleFunc("GET /api/shares/{token}/stats", s.handleShareStats)
	protected.HandleFunc("GET /api/audit", s.handleAuditLog)
	protected.HandleFunc("GET /{file...}", s.handleFileDownload)

	mux.Handle("/", s.gate(protected))

	return s.observe(s.rateLimit(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>ShareGate</title></head>
<body>
<h1>ShareGate</h1>
<form method="post" action="/" enctype="multipart/form-data">
  <input type="file" name="file" multiple>
  <input type="submit" value="Upload">
</form>
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, indexPage)
}

// handleUpload decodes a multipart body straight into the blob store.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if max := s.cfg.Upload.MaxBytes; max > 0 && r.ContentLength > max {
		s.uploadMetrics.RecordRejected("too_large")
		s.recordAudit(ip, "upload_too_large", r.URL.Path)
		http.Error(w, "413 payload too large", http.StatusRequestEntityTooLarge)
		return
	}

	dec, err := upload.NewDecoder(r.Body, r.Header.Get("Content-Type"), r.ContentLength)
	if err != nil {
		s.rejectUpload(w, ip, err)
		return
	}

	saved, err := dec.Decode(r.Context(), s.blobs)
	if err != nil {
		s.rejectUpload(w, ip, err)
		return
	}

	for _, f := range saved {
		s.uploadMetrics.RecordUpload(f.Size)
		s.log.Info("file uploaded",
			zap.String("ip", ip),
			zap.String("name", f.StoredName),
			zap.Int64("bytes", f.Size))
	}
	s.recordAudit(ip, "upload", r.URL.Path)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// rejectUpload maps decoder errors onto HTTP statuses and metric reasons.
func (s *Server) rejectUpload(w http.ResponseWriter, ip string, err error) {
	var status int
	var reason string
	switch {
	case errors.Is(err, upload.ErrNotMultipart):
		status, reason = http.StatusBadRequest, "not_multipart"
	case errors.Is(err, upload.ErrMissingBoundary):
		status, reason = http.StatusBadRequest, "no_boundary"
	case errors.Is(err, upload.ErrLengthRequired):
		status, reason = http.StatusLengthRequired, "length_required"
	case errors.Is(err, upload.ErrMalformed):
		status, reason = http.StatusBadRequest, "malformed"
	default:
		status, reason = http.StatusInternalServerError, "internal"
		s.log.Error("upload failed", zap.Error(err))
	}

	s.uploadMetrics.RecordRejected(reason)
	s.recordAudit(ip, "upload_rejected", reason)
	http.Error(w, fmt.Sprintf("%d %s", status, http.StatusText(status)), status)
}

// handleFileDownload streams a file from the blob store to an authenticated
// client.
func (s *Server) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("file")

	size, err := s.blobs.Stat(r.Context(), name)
	if err != nil {
		s.notFoundOrError(w, r, err, name)
		return
	}

	rc, err := s.blobs.Open(r.Context(), name)
	if err != nil {
		s.notFoundOrError(w, r, err, name)
		return
	}
	defer func() { _ = rc.Close() }()

	s.recordAudit(clientIP(r), "download", r.URL.Path)
	s.serveBlob(w, name, size, rc)
}

// handleShareDownload serves /s/{token}: validate, open, consume, stream.
//
// The order matters: the blob is opened before the download is consumed so
// a missing file never burns one of the link's downloads, and the consume
// happens before streaming so a half-sent response still counts.
func (s *Server) handleShareDownload(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	pin := r.URL.Query().Get("pin")
	ip := clientIP(r)

	v, err := s.shares.Validate(r.Context(), token, pin)
	if err != nil {
		s.log.Error("share validation failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	switch v.Status {
	case share.StatusInactive:
		s.shareMetrics.RecordDownload("inactive")
		s.recordAudit(ip, "share_inactive", r.URL.Path)
		writeJSONError(w, http.StatusGone, "this link is no longer active")
		return
	case share.StatusRequiresPIN:
		s.shareMetrics.RecordDownload("pin_required")
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":     "pin required",
			"file_name": v.FileName,
		})
		return
	case share.StatusInvalidPIN:
		s.shareMetrics.RecordDownload("pin_invalid")
		s.recordAudit(ip, "share_pin_rejected", r.URL.Path)
		writeJSONError(w, http.StatusForbidden, "invalid pin")
		return
	}

	size, err := s.blobs.Stat(r.Context(), v.Link.FilePath)
	if err != nil {
		if errors.Is(err, blob.ErrBlobNotFound) {
			s.shareMetrics.RecordDownload("inactive")
			writeJSONError(w, http.StatusNotFound, "shared file not found")
			return
		}
		s.log.Error("share stat failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	rc, err := s.blobs.Open(r.Context(), v.Link.FilePath)
	if err != nil {
		s.log.Error("share open failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer func() { _ = rc.Close() }()

	if err := s.shares.Consume(r.Context(), token); err != nil {
		if errors.Is(err, sharestore.ErrLinkInactive) {
			// Lost the race against the download limit.
			s.shareMetrics.RecordDownload("inactive")
			writeJSONError(w, http.StatusGone, "this link is no longer active")
			return
		}
		s.log.Error("share consume failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.shareMetrics.RecordDownload("ok")
	s.recordAudit(ip, "share_download", r.URL.Path)

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", v.Link.FileName))
	s.serveBlob(w, v.Link.FileName, size, rc)
}

// serveBlob writes headers and streams the blob body.
func (s *Server) serveBlob(w http.ResponseWriter, name string, size int64, rc io.Reader) {
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))

	if _, err := io.Copy(w, rc); err != nil {
		// Headers are gone; all we can do is log.
		s.log.Debug("download aborted mid-stream", zap.Error(err))
	}
}

func (s *Server) notFoundOrError(w http.ResponseWriter, r *http.Request, err error, name string) {
	if errors.Is(err, blob.ErrBlobNotFound) || errors.Is(err, blob.ErrInvalidName) {
		http.NotFound(w, r)
		return
	}
	s.log.Error("blob access failed", zap.String("name", name), zap.Error(err))
	http.Error(w, "500 internal server error", http.StatusInternalServerError)
}

// mintRequest is the JSON body of POST /api/shares.
type mintRequest struct {
	FilePath     string `json:"file_path"`
	Expiry       string `json:"expiry,omitempty"`
	MaxDownloads int    `json:"max_downloads,omitempty"`
	PIN          string `json:"pin,omitempty"`
}

func (s *Server) handleMintShare(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.FilePath == "" {
		writeJSONError(w, http.StatusBadRequest, "file_path is required")
		return
	}
	if req.MaxDownloads < 0 {
		writeJSONError(w, http.StatusBadRequest, "max_downloads must not be negative")
		return
	}

	var expiry time.Duration
	if req.Expiry != "" {
		d, err := time.ParseDuration(req.Expiry)
		if err != nil || d <= 0 {
			writeJSONError(w, http.StatusBadRequest, "expiry must be a positive duration like \"48h\"")
			return
		}
		expiry = d
	}

	// Only existing files can be shared.
	exists, err := s.blobs.Exists(r.Context(), req.FilePath)
	if err != nil && !errors.Is(err, blob.ErrInvalidName) {
		s.log.Error("blob existence check failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !exists {
		writeJSONError(w, http.StatusNotFound, "file not found")
		return
	}

	ip := clientIP(r)
	link, err := s.shares.Mint(r.Context(), share.MintRequest{
		FilePath:     req.FilePath,
		Expiry:       expiry,
		MaxDownloads: req.MaxDownloads,
		PIN:          req.PIN,
		Creator:      ip,
	})
	if err != nil {
		s.log.Error("share mint failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.shareMetrics.RecordMint()
	s.recordAudit(ip, "share_minted", req.FilePath)

	writeJSON(w, http.StatusCreated, s.linkView(link))
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request) {
	links, err := s.shares.ListActive(r.Context())
	if err != nil {
		s.log.Error("share list failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	views := make([]linkView, 0, len(links))
	for _, l := range links {
		views = append(views, s.linkView(l))
	}
	writeJSON(w, http.StatusOK, map[string]any{"links": views})
}

func (s *Server) handleRevokeShare(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	revoked, err := s.shares.Revoke(r.Context(), token)
	if err != nil {
		s.log.Error("share revoke failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if !revoked {
		writeJSON(w, http.StatusNotFound, map[string]bool{"revoked": false})
		return
	}

	s.shareMetrics.RecordRevoked()
	s.recordAudit(clientIP(r), "share_revoked", r.URL.Path)
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

func (s *Server) handleShareStats(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")

	link, err := s.shares.Stats(r.Context(), token)
	if err != nil {
		if errors.Is(err, sharestore.ErrLinkNotFound) {
			writeJSONError(w, http.StatusNotFound, "unknown token")
			return
		}
		s.log.Error("share stats failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, s.linkView(link))
}

// handleAuditLog returns the most recent audit entries, newest first.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeJSON(w, http.StatusOK, map[string]any{"entries": []any{}})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, map[string]any{"entries": s.audit.Recent(limit)})
}
