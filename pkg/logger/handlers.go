package logger

import (
	"context"
	"log/slog"
	"math/rand"
	"regexp"
	"strings"
	"sync"
)

// AsyncHandler decouples producers from the underlying handler by buffering
// records on a channel and draining them from a single background goroutine.
// With dropOnFull set, records are dropped (not blocked on) once the buffer
// fills, trading durability for a bounded, predictable hot path; without
// it, Handle blocks until the buffer has room.
type AsyncHandler struct {
	next    slog.Handler
	records chan asyncRecord
	drop    bool
	wg      sync.WaitGroup
}

type asyncRecord struct {
	ctx context.Context
	r   slog.Record
}

// NewAsyncHandler wraps next so that Handle never blocks on it. bufSize
// bounds the number of records allowed to queue; dropOnFull selects whether
// a full buffer drops the record (true) or blocks the caller (false).
func NewAsyncHandler(next slog.Handler, bufSize int, dropOnFull bool) *AsyncHandler {
	if bufSize <= 0 {
		bufSize = 1
	}
	h := &AsyncHandler{
		next:    next,
		records: make(chan asyncRecord, bufSize),
		drop:    dropOnFull,
	}
	h.wg.Add(1)
	go h.loop()
	return h
}

func (h *AsyncHandler) loop() {
	defer h.wg.Done()
	for rec := range h.records {
		_ = h.next.Handle(rec.ctx, rec.r)
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	rec := asyncRecord{ctx: ctx, r: r.Clone()}
	if h.drop {
		select {
		case h.records <- rec:
		default:
		}
		return nil
	}
	h.records <- rec
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{next: h.next.WithAttrs(attrs), records: h.records, drop: h.drop}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{next: h.next.WithGroup(name), records: h.records, drop: h.drop}
}

// Close stops accepting new records and waits for the drain goroutine to
// flush whatever is already queued.
func (h *AsyncHandler) Close() {
	close(h.records)
	h.wg.Wait()
}

// SamplingHandler drops a fraction of records before they reach next, so
// that high-volume logs cost less CPU without being silenced entirely.
// Errors and above always pass through regardless of the sample rate.
type SamplingHandler struct {
	next slog.Handler
	rate float64
}

// NewSamplingHandler keeps roughly `rate` (0.0-1.0) of records at or below
// slog.LevelWarn, and always keeps slog.LevelError and above.
func NewSamplingHandler(h slog.Handler, rate float64) *SamplingHandler {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	return &SamplingHandler{next: h, rate: rate}
}

func (h *SamplingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SamplingHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError || rand.Float64() < h.rate {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *SamplingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SamplingHandler{next: h.next.WithAttrs(attrs), rate: h.rate}
}

func (h *SamplingHandler) WithGroup(name string) slog.Handler {
	return &SamplingHandler{next: h.next.WithGroup(name), rate: h.rate}
}

// RedactHandler masks values of attributes whose key looks sensitive
// (email, credit card, password, token, secret, ...) before handing the
// record to the wrapped handler.
type RedactHandler struct {
	next slog.Handler
}

func NewRedactHandler(h slog.Handler) *RedactHandler {
	return &RedactHandler{next: h}
}

var sensitiveKeys = map[string]struct{}{
	"email":       {},
	"cc":          {},
	"card":        {},
	"password":    {},
	"passwd":      {},
	"secret":      {},
	"token":       {},
	"api_key":     {},
	"apikey":      {},
	"ssn":         {},
	"credit_card": {},
}

var ccLike = regexp.MustCompile(`^\d{12,19}$`)
var emailLike = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func isSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

func redactValue(v slog.Value) slog.Value {
	if v.Kind() == slog.KindString {
		s := v.String()
		if ccLike.MatchString(s) || emailLike.MatchString(s) {
			return slog.StringValue("[REDACTED]")
		}
	}
	return v
}

func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		if isSensitiveKey(a.Key) {
			out.AddAttrs(slog.String(a.Key, "[REDACTED]"))
		} else {
			out.AddAttrs(slog.Attr{Key: a.Key, Value: redactValue(a.Value)})
		}
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		if isSensitiveKey(a.Key) {
			redacted[i] = slog.String(a.Key, "[REDACTED]")
		} else {
			redacted[i] = slog.Attr{Key: a.Key, Value: redactValue(a.Value)}
		}
	}
	return &RedactHandler{next: h.next.WithAttrs(redacted)}
}

func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{next: h.next.WithGroup(name)}
}
