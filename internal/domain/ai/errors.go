package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrUpstreamModel wraps any failure of the language or image model call itself.
var ErrUpstreamModel = errors.New("upstream model error")
