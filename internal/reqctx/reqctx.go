// Package reqctx carries per-request values between middleware and the
// dispatcher.
package reqctx

import (
	"context"
	"time"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyRawBody   ctxKey = "raw_body"
	ctxKeyStartTime ctxKey = "start_time"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestID extracts the request ID from context.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// WithRawBody stores the unparsed request body. The slice must not be
// modified afterwards.
func WithRawBody(ctx context.Context, body []byte) context.Context {
	if body == nil {
		body = []byte{}
	}
	return context.WithValue(ctx, ctxKeyRawBody, body)
}

// RawBody returns the captured body and whether one was captured at all.
// An empty captured body is reported as present.
func RawBody(ctx context.Context) ([]byte, bool) {
	v, ok := ctx.Value(ctxKeyRawBody).([]byte)
	return v, ok
}

// WithStartTime records when the request entered the router.
func WithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ctxKeyStartTime, t)
}

// StartTime extracts the start time from context.
func StartTime(ctx context.Context) time.Time {
	if v, ok := ctx.Value(ctxKeyStartTime).(time.Time); ok {
		return v
	}
	return time.Time{}
}
