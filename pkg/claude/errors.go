package claude

import (
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
)

// IsCapacityExhausted reports whether err indicates the model's capacity or
// usage quota is exhausted. This is the only error class worth escalating to
// the fallback model; auth failures, malformed requests, and network errors
// are not fixed by switching models.
func IsCapacityExhausted(err error) bool {
	if err == nil {
		return false
	}

	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case 429, 529: // rate limited / overloaded
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	capacityPatterns := []string{
		"rate_limit_error",
		"overloaded_error",
		"quota exceeded",
		"capacity",
	}
	for _, p := range capacityPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsAuthFailure reports whether err indicates invalid or missing credentials.
func IsAuthFailure(err error) bool {
	if err == nil {
		return false
	}

	var apierr *sdk.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode == 401 || apierr.StatusCode == 403
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "authentication_error") || strings.Contains(msg, "invalid x-api-key")
}
