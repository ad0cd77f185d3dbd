// Package util provides small helpers shared across the engine's packages.
//
// Key utilities:
//   - SafeTruncate: truncates tokens to a log-safe prefix
package util
