package github

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/boardsync/internal/platform"
)

// transport sits beneath both API clients. It paces requests, answers
// conditional reads from the ETag cache, reports rate-limit headers and
// maps failed GraphQL replies onto *platform.APIError.
type transport struct {
	base        http.RoundTripper
	etags       *platform.ETagCache
	limiter     *rate.Limiter
	graphqlPath string
	onRate      func(platform.RateLimit)
	logger      *slog.Logger
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	key := req.URL.String()
	conditional := req.Method == http.MethodGet
	if conditional {
		if tag := t.etags.ETag(key); tag != "" {
			req = req.Clone(ctx)
			req.Header.Set("If-None-Match", tag)
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, platform.TransportError(err)
	}
	if rl, ok := rateFromHeader(resp.Header); ok && t.onRate != nil {
		t.onRate(rl)
	}

	switch {
	case conditional && resp.StatusCode == http.StatusNotModified:
		cached, ok := t.etags.Replay(key)
		if !ok {
			return resp, nil
		}
		resp.Body.Close()
		t.logger.Debug("etag replay", "url", key)
		return replace(resp, http.StatusOK, cached), nil

	case conditional && resp.StatusCode == http.StatusOK:
		body, err := readAll(resp)
		if err != nil {
			return nil, err
		}
		t.etags.Put(key, resp.Header.Get("ETag"), body)
		return replace(resp, resp.StatusCode, body), nil

	case req.Method == http.MethodPost && req.URL.Path == t.graphqlPath:
		body, err := readAll(resp)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, apiError(resp.StatusCode, body)
		}
		if ae := graphqlError(body); ae != nil {
			return nil, ae
		}
		return replace(resp, resp.StatusCode, body), nil
	}
	return resp, nil
}

func readAll(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &platform.APIError{StatusCode: resp.StatusCode, Message: "reading body: " + err.Error()}
	}
	return body, nil
}

// replace returns resp with a new status and an in-memory body.
func replace(resp *http.Response, status int, body []byte) *http.Response {
	out := *resp
	out.StatusCode = status
	out.Status = strconv.Itoa(status) + " " + http.StatusText(status)
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.ContentLength = int64(len(body))
	out.Header = resp.Header.Clone()
	out.Header.Del("Content-Length")
	return &out
}

// apiError builds an APIError from a non-2xx reply, using the JSON
// message field when present.
func apiError(status int, body []byte) *platform.APIError {
	var payload struct {
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		msg = payload.Message
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &platform.APIError{StatusCode: status, Message: msg}
}

// graphqlError returns the first error of a GraphQL reply, or nil when the
// reply carries none or cannot be read as an envelope.
func graphqlError(body []byte) *platform.APIError {
	var envelope struct {
		Errors []struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Errors) == 0 {
		return nil
	}
	first := envelope.Errors[0]
	return &platform.APIError{StatusCode: graphqlStatus(first.Type), Code: first.Type, Message: first.Message}
}

// graphqlStatus maps GraphQL error types onto HTTP-like status codes so
// GraphQL and REST failures classify the same way.
func graphqlStatus(errType string) int {
	switch errType {
	case "NOT_FOUND":
		return http.StatusNotFound
	case "FORBIDDEN", "INSUFFICIENT_SCOPES":
		return http.StatusUnauthorized
	case "RATE_LIMITED":
		return http.StatusTooManyRequests
	case "INTERNAL", "SERVICE_UNAVAILABLE":
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}

func rateFromHeader(h http.Header) (platform.RateLimit, bool) {
	remaining, errR := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	reset, errS := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	if errR != nil || errS != nil {
		return platform.RateLimit{}, false
	}
	return platform.RateLimit{Remaining: remaining, Reset: time.Unix(reset, 0)}, true
}
