package engine

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"sync"

	"github.com/notifyhub/editorial-notify/internal/domain"
)

// DispatchContext holds the state scoped to one top-level firing: one HTTP
// request, one batch of events or one scheduled job. It is discarded
// afterwards, so duplicate suppression never outlives it.
type DispatchContext struct {
	mu         sync.Mutex
	signatures map[string]struct{}
}

func NewDispatchContext() *DispatchContext {
	return &DispatchContext{signatures: make(map[string]struct{})}
}

// Register records sig and reports whether it was new.
func (d *DispatchContext) Register(sig string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, seen := d.signatures[sig]; seen {
		return false
	}
	d.signatures[sig] = struct{}{}
	return true
}

// Len returns the number of registered signatures.
func (d *DispatchContext) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.signatures)
}

type dispatchContextKey struct{}

// WithDispatchContext returns ctx carrying dc.
func WithDispatchContext(ctx context.Context, dc *DispatchContext) context.Context {
	return context.WithValue(ctx, dispatchContextKey{}, dc)
}

// DispatchContextFrom returns the DispatchContext carried by ctx, or nil.
func DispatchContextFrom(ctx context.Context) *DispatchContext {
	dc, _ := ctx.Value(dispatchContextKey{}).(*DispatchContext)
	return dc
}

// ensureDispatchContext attaches a fresh DispatchContext unless ctx already
// carries one.
func ensureDispatchContext(ctx context.Context) (context.Context, *DispatchContext) {
	if dc := DispatchContextFrom(ctx); dc != nil {
		return ctx, dc
	}
	dc := NewDispatchContext()
	return WithDispatchContext(ctx, dc), dc
}

// Signature digests a rendered message together with the channel and the
// receiver it is addressed to.
func Signature(msg domain.Message, channel, receiverKey string) string {
	h := sha1.New()
	for _, part := range []string{msg.Subject, msg.Body, channel, receiverKey} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
