package platform

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/boardsync/internal/ir"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limited 429", &APIError{StatusCode: 429}, true},
		{"secondary rate limit 403", &APIError{StatusCode: 403}, true},
		{"server error", &APIError{StatusCode: 502}, true},
		{"no status", &APIError{Message: "connection reset"}, true},
		{"transport failure", TransportError(errors.New("dial tcp: timeout")), true},
		{"wrapped transport failure", fmt.Errorf("list: %w", TransportError(errors.New("connection reset"))), true},
		{"decode failure", fmt.Errorf("decoding graphql reply: %w", errors.New("unexpected end of JSON input")), false},
		{"plain error", errors.New("boom"), false},
		{"unauthorized", &APIError{StatusCode: 401}, false},
		{"not found", &APIError{StatusCode: 404}, false},
		{"unprocessable", &APIError{StatusCode: 422}, false},
		{"wrapped 429", fmt.Errorf("admit: %w", &APIError{StatusCode: 429}), true},
		{"cancelled", context.Canceled, false},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestReason(t *testing.T) {
	assert.Equal(t, ir.ReasonUnauthorized, Reason(&APIError{StatusCode: 401}))
	assert.Equal(t, ir.ReasonNotFound, Reason(fmt.Errorf("x: %w", &APIError{StatusCode: 404})))
	assert.Equal(t, ir.ReasonRateLimited, Reason(&APIError{StatusCode: 429}))
	assert.Equal(t, ir.ReasonRateLimited, Reason(&APIError{StatusCode: 403}))
	assert.Equal(t, ir.ReasonServerError, Reason(&APIError{StatusCode: 500}))
	assert.Equal(t, ir.ReasonServerError, Reason(&APIError{StatusCode: 422}))
	assert.Equal(t, ir.ReasonServerError, Reason(errors.New("boom")))
	assert.Equal(t, ir.ReasonCancelled, Reason(context.Canceled))
}

func TestAPIErrorMessage(t *testing.T) {
	assert.Equal(t, "platform error 404 (NOT_FOUND): no such item", (&APIError{StatusCode: 404, Code: "NOT_FOUND", Message: "no such item"}).Error())
	assert.Equal(t, "platform error 500: oops", (&APIError{StatusCode: 500, Message: "oops"}).Error())
	assert.Equal(t, 0, StatusCode(errors.New("x")))

	cause := errors.New("dial tcp: connection refused")
	te := TransportError(cause)
	assert.Equal(t, "platform error 0: dial tcp: connection refused", te.Error())
	assert.ErrorIs(t, te, cause)
}

func TestETagCache(t *testing.T) {
	c := NewETagCache()

	c.Put("/a", "", []byte("ignored"))
	assert.Equal(t, 0, c.Len())

	body := []byte(`[1]`)
	c.Put("/a", `W/"abc"`, body)
	body[0] = 'x'

	assert.Equal(t, `W/"abc"`, c.ETag("/a"))
	assert.Equal(t, "", c.ETag("/b"))

	got, ok := c.Replay("/a")
	assert.True(t, ok)
	assert.Equal(t, []byte(`[1]`), got)
	assert.Equal(t, 1, c.Hits())

	_, ok = c.Replay("/b")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Hits())
}
