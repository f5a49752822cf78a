// Package server implements the ShareGate HTTP server: the authenticated
// file area, the upload endpoint, the share-link API, and the public
// share-download endpoint.
//
// Request flow for gated routes:
//
//	rate limit -> IP allowlist -> attempt tracking + credentials -> origin check -> handler
//
// Share downloads under /s/ bypass the credential gate entirely - the token
// is the credential - but still pass through rate limiting.
package server
