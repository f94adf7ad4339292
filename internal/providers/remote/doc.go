// Package remote implements the script, image and composition generators as
// JSON-over-HTTP clients. Requests honour the caller's context and the
// configured timeout; failures are never retried.
package remote
