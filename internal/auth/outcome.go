package auth

// Outcome is the tri-state result of checking request credentials.
//
// This is deliberately not a boolean: NoCredentials (first visit, no
// Authorization header) must never increment the failure counter, while
// Failed (a wrong secret was actually presented) always does. Collapsing
// the two would penalize legitimate first-time visitors with the same
// mechanism that blocks brute-force attempts.
type Outcome int

const (
	// OutcomeSuccess means the request carried a matching secret, or no
	// secret is configured at all.
	OutcomeSuccess Outcome = iota

	// OutcomeFailed means the request carried credentials that were
	// malformed or did not match.
	OutcomeFailed

	// OutcomeNoCredentials means the request carried no Authorization
	// header. The caller should respond with a challenge.
	OutcomeNoCredentials
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailed:
		return "failed"
	case OutcomeNoCredentials:
		return "no_credentials"
	default:
		return "unknown"
	}
}

// Verdict is the gate decision derived from an Outcome plus the attempt
// tracker state, in the order that avoids double-counting failures.
type Verdict int

const (
	// VerdictAllow lets the request through.
	VerdictAllow Verdict = iota

	// VerdictChallenge asks the client to (re)authenticate. Covers both
	// missing and wrong credentials.
	VerdictChallenge

	// VerdictBlocked rejects the request outright: the client IP is
	// inside an active block window. Callers must render the same
	// generic forbidden response used for every other block reason.
	VerdictBlocked
)

// String returns the verdict name for logging.
func (v Verdict) String() string {
	switch v {
	case VerdictAllow:
		return "allow"
	case VerdictChallenge:
		return "challenge"
	case VerdictBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}
