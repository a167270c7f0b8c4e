package claude

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsCapacityExhausted(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit message", eris.New(`{"type":"rate_limit_error","message":"Number of requests exceeded"}`), true},
		{"overloaded message", eris.New(`{"type":"overloaded_error"}`), true},
		{"quota message", eris.New("monthly quota exceeded"), true},
		{"capacity message", eris.New("model capacity unavailable"), true},
		{"wrapped", eris.Wrap(eris.New("overloaded_error"), "invoke"), true},
		{"auth error", eris.New("authentication_error: invalid x-api-key"), false},
		{"bad request", eris.New("invalid_request_error"), false},
		{"network", eris.New("dial tcp: connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCapacityExhausted(tt.err))
		})
	}
}

func TestIsAuthFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"authentication error", eris.New(`{"type":"authentication_error"}`), true},
		{"invalid key", eris.New("invalid x-api-key"), true},
		{"rate limit", eris.New("rate_limit_error"), false},
		{"generic", eris.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAuthFailure(tt.err))
		})
	}
}

func TestContentBlockConstructors(t *testing.T) {
	tb := TextBlock("hello")
	assert.Equal(t, "text", tb.Type)
	assert.Equal(t, "hello", tb.Text)

	ib := ImageBlock("image/png", []byte{1, 2, 3})
	assert.Equal(t, "image", ib.Type)
	assert.Equal(t, "image/png", ib.MediaType)
	assert.Equal(t, []byte{1, 2, 3}, ib.Data)
}
