package resilience

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"wrapped transient", NewTransientError(eris.New("503"), 503), true},
		{"transient inside eris chain", eris.Wrap(NewTransientError(eris.New("503"), 503), "download"), true},
		{"connection reset pattern", eris.New("read tcp: connection reset by peer"), true},
		{"dns pattern", eris.New("dial tcp: no such host"), true},
		{"io timeout pattern", eris.New("i/o timeout"), true},
		{"plain error", eris.New("invalid image"), false},
		{"not found", eris.New("404 not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}
