package server

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/marmos91/sharegate/internal/auth"
)

// statusRecorder captures the response status for metrics and auditing.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(p)
}

// clientIP extracts the remote address without its port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// routeLabel classifies the request path into a low-cardinality metrics
// label.
func routeLabel(r *http.Request) string {
	switch {
	case r.URL.Path == "/":
		if r.Method == http.MethodPost {
			return "upload"
		}
		return "index"
	case r.URL.Path == "/healthz":
		return "healthz"
	case r.URL.Path == "/metrics":
		return "metrics"
	case len(r.URL.Path) >= 3 && r.URL.Path[:3] == "/s/":
		return "share_download"
	case len(r.URL.Path) >= 11 && r.URL.Path[:11] == "/api/shares":
		return "share_api"
	default:
		return "files"
	}
}

// observe wraps a handler with request duration metrics.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.gateMetrics.RecordRequest(routeLabel(r), rec.status, time.Since(start))
	})
}

// rateLimit refuses requests once the client's bucket is drained. Applies
// to every route, including share downloads.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.limiter.Allow(ip) {
			s.gateMetrics.RecordRateLimited()
			s.recordAudit(ip, "rate_limited", r.URL.Path)
			http.Error(w, "429 too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// gate enforces the access protocol on protected routes: IP allowlist,
// attempt tracking with Basic credentials, then the cross-origin check for
// state-changing methods.
//
// Refusals are deliberately uniform: a blocked client and a denied IP both
// get the same 403 body, so probing reveals nothing about which control
// fired.
func (s *Server) gate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		if !s.allowlist.Allows(ip) {
			s.recordAudit(ip, "ip_denied", r.URL.Path)
			s.forbidden(w)
			return
		}

		outcome, verdict := s.authenticator.Authenticate(r, ip)
		s.gateMetrics.RecordAuthOutcome(outcome.String())

		switch verdict {
		case auth.VerdictBlocked:
			s.gateMetrics.RecordBlocked()
			s.recordAudit(ip, "blocked", r.URL.Path)
			s.forbidden(w)
			return
		case auth.VerdictChallenge:
			status := "unauthenticated"
			if outcome == auth.OutcomeFailed {
				status = "auth_failed"
			}
			s.recordAudit(ip, status, r.URL.Path)
			s.challenge(w)
			return
		}

		if !auth.ValidateOrigin(r) {
			s.gateMetrics.RecordOriginRejected()
			s.recordAudit(ip, "origin_rejected", r.URL.Path)
			s.forbidden(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// recordAudit writes one audit entry. File sink failures are logged and
// never abort the request.
func (s *Server) recordAudit(ip, status, path string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ip, status, path); err != nil {
		s.log.Error("audit write failed", zap.Error(err))
	}
}

// challenge sends a 401 with the Basic auth challenge.
func (s *Server) challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", s.cfg.Auth.Realm))
	http.Error(w, "401 authentication required", http.StatusUnauthorized)
}

// forbidden sends the uniform 403 response.
func (s *Server) forbidden(w http.ResponseWriter) {
	http.Error(w, "403 access denied", http.StatusForbidden)
}
