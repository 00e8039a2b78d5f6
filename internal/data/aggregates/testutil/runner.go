// Package testutil holds fault-injecting doubles for the progress write path.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/coursehub-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/coursehub-backend/internal/domain/aggregates"
	"github.com/yungbote/coursehub-backend/internal/platform/dbctx"
)

// FlakyRunner fails the first Failures calls with Err before delegating to Inner.
// A nil Inner runs the body without a transaction.
type FlakyRunner struct {
	Inner    aggregates.TxRunner
	Failures int
	Err      error

	mu    sync.Mutex
	calls int
}

func (r *FlakyRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.calls++
	fail := r.Err != nil && r.calls <= r.Failures
	r.mu.Unlock()
	if fail {
		return r.Err
	}
	if r.Inner == nil {
		return fn(dbctx.Context{Ctx: ctx})
	}
	return r.Inner.InTx(ctx, fn)
}

// Calls returns how many transactions were attempted.
func (r *FlakyRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// RecordingObserver keeps every reported outcome code, "" for success.
type RecordingObserver struct {
	mu    sync.Mutex
	codes []domainagg.ErrorCode
}

func (o *RecordingObserver) ObserveWrite(_ string, code domainagg.ErrorCode, _ time.Duration) {
	o.mu.Lock()
	o.codes = append(o.codes, code)
	o.mu.Unlock()
}

func (o *RecordingObserver) Count(code domainagg.ErrorCode) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, c := range o.codes {
		if c == code {
			n++
		}
	}
	return n
}

func (o *RecordingObserver) Total() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.codes)
}
