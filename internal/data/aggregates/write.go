// Package aggregates implements the progress write boundary on top of the table repos.
package aggregates

import (
	"context"
	"strings"
	"time"

	domainagg "github.com/yungbote/coursehub-backend/internal/domain/aggregates"
	"github.com/yungbote/coursehub-backend/internal/observability"
	"github.com/yungbote/coursehub-backend/internal/platform/dbctx"
	"github.com/yungbote/coursehub-backend/internal/platform/logger"
	"gorm.io/gorm"
)

// TxRunner opens the transaction a write body runs in.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

// Observer receives one call per finished write. code is empty on success.
type Observer interface {
	ObserveWrite(op string, code domainagg.ErrorCode, dur time.Duration)
}

type WriteDeps struct {
	DB       *gorm.DB
	Log      *logger.Logger
	Runner   TxRunner
	Observer Observer
}

func (d WriteDeps) normalized() WriteDeps {
	if d.Runner == nil {
		d.Runner = NewGormTxRunner(d.DB)
	}
	if d.Observer == nil {
		d.Observer = MetricsObserver(nil)
	}
	return d
}

type gormRunner struct{ db *gorm.DB }

func NewGormTxRunner(db *gorm.DB) TxRunner { return gormRunner{db: db} }

func (r gormRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if r.db == nil {
		return domainagg.NewError(domainagg.CodeInternal, "tx", "no database configured", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	})
}

// MetricsObserver reports writes to the process metrics registry. A nil registry falls
// back to observability.Current().
func MetricsObserver(m *observability.Metrics) Observer { return metricsObserver{m: m} }

type metricsObserver struct{ m *observability.Metrics }

func (o metricsObserver) ObserveWrite(op string, code domainagg.ErrorCode, dur time.Duration) {
	m := o.m
	if m == nil {
		m = observability.Current()
	}
	if m == nil {
		return
	}
	switch code {
	case "":
		m.ObserveAggregateOperation(op, "success", dur)
		return
	case domainagg.CodeConflict:
		m.IncAggregateConflict(op)
	case domainagg.CodeRetryable:
		m.IncAggregateRetry(op)
	}
	m.ObserveAggregateOperation(op, string(code), dur)
}

// executeWrite runs fn in one transaction and reports the classified outcome.
func executeWrite(ctx context.Context, deps WriteDeps, op string, fn func(dbc dbctx.Context) error) error {
	deps = deps.normalized()
	if op = strings.TrimSpace(op); op == "" {
		op = "progress.write"
	}
	began := time.Now()
	err := MapError(op, deps.Runner.InTx(ctx, fn))
	deps.Observer.ObserveWrite(op, domainagg.CodeOf(err), time.Since(began))
	return err
}
