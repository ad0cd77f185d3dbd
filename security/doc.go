// Package security provides the security primitives used by the OAuth
// engine: constant-time credential comparison, bcrypt secret hashing,
// random token generation, per-client rate limiting, audit logging with
// hashed PII, and response cache headers.
//
// # Credential Comparison
//
// Client secrets and tokens must never be compared with ==. Use
// ConstantTimeEqual for plaintext values and CompareSecret for bcrypt
// hashes:
//
//	if !security.CompareSecret(client.SecretHash, presented) {
//	    return oauth.ErrInvalidClient("")
//	}
//
// # Rate Limiting
//
// RateLimiter keeps one token bucket per identifier (usually a client_id)
// and evicts the least recently seen identifier once MaxEntries is reached.
// Idle buckets are swept by a background goroutine; call Stop when done.
//
//	limiter := security.NewRateLimiter(10, 20, logger)
//	defer limiter.Stop()
//
// # Audit Logging
//
// Auditor writes "security_audit" records through slog. User identifiers
// are hashed before logging; client identifiers are logged as-is since they
// are public.
package security
