package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(context.Context) error {
	if t.rolledBack {
		return pgx.ErrTxClosed
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx  *fakeTx
	err error
}

func (b fakeBeginner) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.tx, nil
}

func TestRunInTxCommitsOnSuccess(t *testing.T) {
	tx := &fakeTx{}
	err := runInTx(context.Background(), fakeBeginner{tx: tx}, New(nil), func(Gateway) error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tx.committed || tx.rolledBack {
		t.Fatalf("expected commit only, got committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	tx := &fakeTx{}
	want := errors.New("boom")
	err := runInTx(context.Background(), fakeBeginner{tx: tx}, New(nil), func(Gateway) error { return want })
	if !errors.Is(err, want) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if tx.committed || !tx.rolledBack {
		t.Fatalf("expected rollback only, got committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
}

func TestRunInTxRollsBackOnPanic(t *testing.T) {
	tx := &fakeTx{}
	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = runInTx(context.Background(), fakeBeginner{tx: tx}, New(nil), func(Gateway) error { panic("boom") })
	}()
	if tx.committed || !tx.rolledBack {
		t.Fatalf("expected rollback after panic, got committed=%v rolledBack=%v", tx.committed, tx.rolledBack)
	}
}

func TestRunInTxBeginFailure(t *testing.T) {
	want := errors.New("no connection")
	called := false
	err := runInTx(context.Background(), fakeBeginner{err: want}, New(nil), func(Gateway) error {
		called = true
		return nil
	})
	if !errors.Is(err, want) || called {
		t.Fatalf("expected begin error without running fn, got err=%v called=%v", err, called)
	}
}
