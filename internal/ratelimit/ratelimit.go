// Package ratelimit throttles transfer streams to a byte rate.
//
// Both transports wrap the local side of an upload or download with these
// readers and writers, so the limit holds whatever the wire implementation.
package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

const (
	maxReadChunk  = 8 * 1024
	maxWriteChunk = 64 * 1024
)

// New returns a limiter for bytesPerSecond with a one second burst, or nil
// when bytesPerSecond is not positive (no limit).
func New(bytesPerSecond int64) *rate.Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(bytesPerSecond), int(bytesPerSecond))
}

type reader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

// NewReader throttles reads from r. A nil limiter returns r unchanged.
func NewReader(ctx context.Context, r io.Reader, limiter *rate.Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &reader{ctx: ctx, r: r, limiter: limiter}
}

func (r *reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	size := min(len(p), maxReadChunk, r.limiter.Burst())
	if err := r.limiter.WaitN(r.ctx, size); err != nil {
		return 0, err
	}
	return r.r.Read(p[:size])
}

type writer struct {
	ctx     context.Context
	w       io.Writer
	limiter *rate.Limiter
}

// NewWriter throttles writes to w. A nil limiter returns w unchanged.
func NewWriter(ctx context.Context, w io.Writer, limiter *rate.Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &writer{ctx: ctx, w: w, limiter: limiter}
}

func (w *writer) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		size := min(len(p)-written, maxWriteChunk, w.limiter.Burst())
		// take tokens first so a slow sink sees backpressure
		if err := w.limiter.WaitN(w.ctx, size); err != nil {
			return written, err
		}
		n, err := w.w.Write(p[written : written+size])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
