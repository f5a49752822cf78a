// Package auth implements the request gate: tri-state credential checking,
// per-IP failure tracking with automatic blocking, an optional IP allowlist,
// and the Origin/Referer CSRF guard.
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
)

// Authenticator validates HTTP basic-auth credentials against a configured
// password and/or access token and applies the attempt-tracking protocol.
//
// Either secret grants access: deployments hand out the password to humans
// and the token to scripts. With neither configured, every request passes.
type Authenticator struct {
	password string
	token    string
	tracker  *AttemptTracker
}

// NewAuthenticator creates an authenticator. tracker must not be nil.
func NewAuthenticator(password, token string, tracker *AttemptTracker) *Authenticator {
	return &Authenticator{
		password: password,
		token:    token,
		tracker:  tracker,
	}
}

// Enabled reports whether any secret is configured.
func (a *Authenticator) Enabled() bool {
	return a.password != "" || a.token != ""
}

// Tracker exposes the underlying attempt tracker.
func (a *Authenticator) Tracker() *AttemptTracker {
	return a.tracker
}

// CheckCredentials inspects the request's Authorization header and returns
// the tri-state outcome. It never touches the attempt tracker; use
// Authenticate for the full gate protocol.
//
// Rules:
//   - no secret configured: always OutcomeSuccess
//   - no Authorization header: OutcomeNoCredentials
//   - malformed header, wrong scheme, or non-matching secret: OutcomeFailed
//   - the basic-auth password matching either configured secret:
//     OutcomeSuccess (the username is ignored)
func (a *Authenticator) CheckCredentials(r *http.Request) Outcome {
	if !a.Enabled() {
		return OutcomeSuccess
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return OutcomeNoCredentials
	}

	scheme, payload, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Basic") {
		return OutcomeFailed
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return OutcomeFailed
	}

	_, secret, found := strings.Cut(string(decoded), ":")
	if !found {
		return OutcomeFailed
	}

	if a.matches(secret) {
		return OutcomeSuccess
	}
	return OutcomeFailed
}

// matches compares the presented secret against both configured secrets in
// constant time. Both comparisons always run so timing does not reveal
// which secret (if any) came close.
func (a *Authenticator) matches(secret string) bool {
	passOK := a.password != "" &&
		subtle.ConstantTimeCompare([]byte(secret), []byte(a.password)) == 1
	tokenOK := a.token != "" &&
		subtle.ConstantTimeCompare([]byte(secret), []byte(a.token)) == 1
	return passOK || tokenOK
}

// Authenticate runs the full gate protocol for a request and returns both
// the credential outcome and the gate verdict.
//
// The ordering is load-bearing:
//  1. A blocked IP is rejected before credentials are even looked at, so a
//     correct password does not bypass an active block, and a failure from
//     an already-blocked IP is not double-counted.
//  2. Success clears the IP's record unconditionally, even one failure shy
//     of the threshold, so legitimate retries are never penalized.
//  3. NoCredentials never touches the counter.
func (a *Authenticator) Authenticate(r *http.Request, ip string) (Outcome, Verdict) {
	if a.tracker.IsBlocked(ip) {
		return OutcomeFailed, VerdictBlocked
	}

	outcome := a.CheckCredentials(r)
	switch outcome {
	case OutcomeSuccess:
		a.tracker.RecordSuccess(ip)
		return outcome, VerdictAllow
	case OutcomeNoCredentials:
		return outcome, VerdictChallenge
	default:
		a.tracker.RecordFailure(ip)
		return outcome, VerdictChallenge
	}
}
