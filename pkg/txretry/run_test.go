package txretry

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var errConflict = errors.New("serialization conflict")

// stubClassifier votes retryable for errConflict only.
type stubClassifier struct{}

func (stubClassifier) ShouldRetry(err error) bool {
	return errors.Is(err, errConflict)
}

type stubTransaction struct {
	commitErr error
	commits   int
	rollbacks int
	resources []any
}

func (t *stubTransaction) Commit() error {
	t.commits++
	return t.commitErr
}

func (t *stubTransaction) Rollback() error {
	t.rollbacks++
	return nil
}

func (t *stubTransaction) Resources() []any {
	return t.resources
}

type stubManager struct {
	attempts    int
	beginCount  int
	beginErr    error
	commitErrs  []error
	latestIndex int
	lastTx      *stubTransaction
}

func newStubManager(attempts int) *stubManager {
	return &stubManager{attempts: attempts, latestIndex: -1}
}

func (m *stubManager) Begin(ctx context.Context) (Transaction, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	tx := &stubTransaction{resources: []any{stubClassifier{}}}
	if m.beginCount < len(m.commitErrs) {
		tx.commitErr = m.commitErrs[m.beginCount]
	}
	m.beginCount++
	m.lastTx = tx
	return tx, nil
}

func (m *stubManager) RetryAttemptCount() int {
	return m.attempts
}

func (m *stubManager) SetLatestRetryIndex(n int) {
	m.latestIndex = n
}

func TestRunCommitsOnFirstAttempt(t *testing.T) {
	mgr := newStubManager(3)
	got, err := Run(context.Background(), mgr, func(ctx context.Context) (string, error) {
		if _, ok := FromContext(ctx); !ok {
			t.Fatalf("expected active transaction in the work context")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != "ok" {
		t.Fatalf("unexpected result %q", got)
	}
	if mgr.beginCount != 1 {
		t.Fatalf("expected a single transaction, got %d", mgr.beginCount)
	}
	if mgr.lastTx.commits != 1 {
		t.Fatalf("expected one commit, got %d", mgr.lastTx.commits)
	}
	if mgr.latestIndex != 0 {
		t.Fatalf("expected latest retry index 0, got %d", mgr.latestIndex)
	}
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	mgr := newStubManager(5)
	calls := 0
	got, err := Run(context.Background(), mgr, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errConflict
		}
		return calls, nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got != 3 {
		t.Fatalf("unexpected result %d", got)
	}
	if mgr.beginCount != 3 {
		t.Fatalf("expected 3 transactions, got %d", mgr.beginCount)
	}
	if mgr.latestIndex != 2 {
		t.Fatalf("expected latest retry index 2, got %d", mgr.latestIndex)
	}
}

func TestRunExhaustsAttempts(t *testing.T) {
	mgr := newStubManager(3)
	_, err := Run(context.Background(), mgr, func(ctx context.Context) (int, error) {
		return 0, errConflict
	})
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Fatalf("expected 3 attempts recorded, got %d", exhausted.Attempts)
	}
	if !errors.Is(err, errConflict) {
		t.Fatalf("expected the last conflict chained as cause")
	}
	if mgr.beginCount != 3 {
		t.Fatalf("expected 3 transactions, got %d", mgr.beginCount)
	}
	if mgr.latestIndex != 2 {
		t.Fatalf("expected latest retry index 2, got %d", mgr.latestIndex)
	}
	if mgr.lastTx.rollbacks != 1 {
		t.Fatalf("expected each failed attempt rolled back, got %d on last tx", mgr.lastTx.rollbacks)
	}
}

func TestRunPropagatesFatalError(t *testing.T) {
	mgr := newStubManager(3)
	fatal := errors.New("constraint violation")
	_, err := Run(context.Background(), mgr, func(ctx context.Context) (int, error) {
		return 0, fatal
	})
	if !errors.Is(err, fatal) {
		t.Fatalf("expected fatal error unchanged, got %v", err)
	}
	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) {
		t.Fatalf("fatal error must not be wrapped as exhaustion")
	}
	if mgr.beginCount != 1 {
		t.Fatalf("expected no retry after fatal error, got %d transactions", mgr.beginCount)
	}
	if mgr.lastTx.rollbacks != 1 {
		t.Fatalf("expected failed attempt to roll back, got %d rollbacks", mgr.lastTx.rollbacks)
	}
}

func TestRunRetriesCommitConflict(t *testing.T) {
	mgr := newStubManager(3)
	mgr.commitErrs = []error{errConflict}
	calls := 0
	_, err := Run(context.Background(), mgr, func(ctx context.Context) (int, error) {
		calls++
		return calls, nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected commit conflict to trigger a second attempt, got %d calls", calls)
	}
}

func TestRunNilManager(t *testing.T) {
	_, err := Run(context.Background(), nil, func(ctx context.Context) (int, error) {
		t.Fatalf("work must not run")
		return 0, nil
	})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestRunZeroAttempts(t *testing.T) {
	mgr := newStubManager(0)
	_, err := Run(context.Background(), mgr, func(ctx context.Context) (int, error) {
		t.Fatalf("work must not run")
		return 0, nil
	})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if mgr.beginCount != 0 {
		t.Fatalf("expected no transaction, got %d", mgr.beginCount)
	}
}

func TestRunRejectsNestedScope(t *testing.T) {
	mgr := newStubManager(3)
	ctx := WithTransaction(context.Background(), &stubTransaction{})
	_, err := Run(ctx, mgr, func(ctx context.Context) (int, error) {
		t.Fatalf("work must not run")
		return 0, nil
	})
	if !errors.Is(err, ErrAlreadyInTransaction) {
		t.Fatalf("expected ErrAlreadyInTransaction, got %v", err)
	}
	if mgr.beginCount != 0 {
		t.Fatalf("expected no transaction, got %d", mgr.beginCount)
	}
}

func TestRunBeginFailure(t *testing.T) {
	mgr := newStubManager(3)
	mgr.beginErr = errors.New("connection refused")
	_, err := Run(context.Background(), mgr, func(ctx context.Context) (int, error) {
		t.Fatalf("work must not run")
		return 0, nil
	})
	if err == nil || !errors.Is(err, mgr.beginErr) {
		t.Fatalf("expected wrapped begin error, got %v", err)
	}
}

func TestExec(t *testing.T) {
	mgr := newStubManager(2)
	ran := false
	if err := Exec(context.Background(), mgr, func(ctx context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if !ran {
		t.Fatalf("expected work to run")
	}
}

func TestWrap(t *testing.T) {
	mgr := newStubManager(3)
	calls := 0
	wrapped := Wrap(mgr, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errConflict
		}
		return calls, nil
	})
	got, err := wrapped(context.Background())
	if err != nil {
		t.Fatalf("wrapped: %v", err)
	}
	if got != 2 {
		t.Fatalf("unexpected result %d", got)
	}
}

func TestWrapProvider(t *testing.T) {
	mgr := newStubManager(2)
	wrapped := WrapProvider(func(ctx context.Context) Manager {
		return mgr
	}, func(ctx context.Context) (string, error) {
		return "done", nil
	})
	got, err := wrapped(context.Background())
	if err != nil {
		t.Fatalf("wrapped: %v", err)
	}
	if got != "done" {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestIsRetryableWithoutClassifier(t *testing.T) {
	tx := &stubTransaction{resources: []any{"not a classifier"}}
	if IsRetryable(tx, errConflict) {
		t.Fatalf("resources without a classifier must not vote retryable")
	}
	if IsRetryable(nil, errConflict) {
		t.Fatalf("nil transaction must not be retryable")
	}
	if IsRetryable(tx, nil) {
		t.Fatalf("nil error must not be retryable")
	}
}

func TestRunRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewPrometheusRecorder(reg)
	mgr := newStubManager(3)
	calls := 0
	_, err := Run(context.Background(), mgr, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errConflict
		}
		return calls, nil
	}, WithMetrics(rec))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := testutil.ToFloat64(rec.attempts); got != 2 {
		t.Fatalf("expected 2 attempts observed, got %v", got)
	}
	if got := testutil.ToFloat64(rec.retries); got != 1 {
		t.Fatalf("expected 1 retry observed, got %v", got)
	}
	if got := testutil.ToFloat64(rec.outcomes.WithLabelValues(string(OutcomeCommitted))); got != 1 {
		t.Fatalf("expected 1 committed outcome, got %v", got)
	}
}
