package aggregates

import (
	"context"
	"errors"
	"testing"
	"time"

	domainagg "github.com/yungbote/coursehub-backend/internal/domain/aggregates"
	"github.com/yungbote/coursehub-backend/internal/platform/dbctx"
)

type directRunner struct{}

func (directRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	return fn(dbctx.Context{Ctx: ctx})
}

type observed struct {
	op   string
	code domainagg.ErrorCode
}

type observerSpy struct{ calls []observed }

func (o *observerSpy) ObserveWrite(op string, code domainagg.ErrorCode, _ time.Duration) {
	o.calls = append(o.calls, observed{op: op, code: code})
}

func TestExecuteWriteReportsOutcome(t *testing.T) {
	cases := []struct {
		name string
		body error
		want domainagg.ErrorCode
	}{
		{"success", nil, ""},
		{"validation", ValidationError("bad lesson id"), domainagg.CodeValidation},
		{"conflict", ConflictError("stale row"), domainagg.CodeConflict},
		{"retryable", RetryableError("lock wait"), domainagg.CodeRetryable},
		{"internal", errors.New("boom"), domainagg.CodeInternal},
	}
	for _, tc := range cases {
		spy := &observerSpy{}
		deps := WriteDeps{Runner: directRunner{}, Observer: spy}
		err := executeWrite(context.Background(), deps, "progress.test", func(dbctx.Context) error { return tc.body })
		if got := domainagg.CodeOf(err); got != tc.want {
			t.Fatalf("%s: code want=%q got=%q", tc.name, tc.want, got)
		}
		if len(spy.calls) != 1 || spy.calls[0].op != "progress.test" || spy.calls[0].code != tc.want {
			t.Fatalf("%s: unexpected observations %+v", tc.name, spy.calls)
		}
	}
}

func TestExecuteWriteDefaultsOpName(t *testing.T) {
	spy := &observerSpy{}
	_ = executeWrite(context.Background(), WriteDeps{Runner: directRunner{}, Observer: spy}, "  ", func(dbctx.Context) error { return nil })
	if len(spy.calls) != 1 || spy.calls[0].op != "progress.write" {
		t.Fatalf("unexpected observations %+v", spy.calls)
	}
}

func TestGormRunnerWithoutDB(t *testing.T) {
	err := NewGormTxRunner(nil).InTx(context.Background(), func(dbctx.Context) error { return nil })
	if !domainagg.IsCode(err, domainagg.CodeInternal) {
		t.Fatalf("want internal got=%v", err)
	}
}

func TestMetricsObserverWithoutRegistry(t *testing.T) {
	// no registry installed; must not panic
	MetricsObserver(nil).ObserveWrite("progress.test", domainagg.CodeConflict, time.Millisecond)
}
