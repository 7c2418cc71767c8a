package breaker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpensAfterMaxFailures(t *testing.T) {
	b := New("test", Config{MaxFailures: 3, ResetTimeout: time.Hour, SuccessesToClose: 1}, testLogger())
	boom := errors.New("sink down")
	fail := func(ctx context.Context) error { return boom }

	for i := 0; i < 3; i++ {
		if err := b.Execute(context.Background(), fail); !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v, want sink error", i, err)
		}
	}
	if b.State() != Open {
		t.Fatalf("state = %v after %d failures, want open", b.State(), 3)
	}

	called := false
	err := b.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Errorf("open breaker err = %v, want ErrOpen", err)
	}
	if called {
		t.Errorf("op invoked while breaker open")
	}
}

func TestHalfOpenRecovery(t *testing.T) {
	b := New("test", Config{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond, SuccessesToClose: 2}, testLogger())
	boom := errors.New("sink down")

	if err := b.Execute(context.Background(), func(ctx context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("seed failure: %v", err)
	}
	if b.State() != Open {
		t.Fatalf("state = %v, want open", b.State())
	}

	time.Sleep(15 * time.Millisecond)
	ok := func(ctx context.Context) error { return nil }
	if err := b.Execute(context.Background(), ok); err != nil {
		t.Fatalf("half-open attempt: %v", err)
	}
	if b.State() != HalfOpen {
		t.Fatalf("state = %v after 1 of 2 successes, want half_open", b.State())
	}
	if err := b.Execute(context.Background(), ok); err != nil {
		t.Fatalf("second success: %v", err)
	}
	if b.State() != Closed {
		t.Fatalf("state = %v after required successes, want closed", b.State())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New("test", Config{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond, SuccessesToClose: 1}, testLogger())
	boom := errors.New("still down")

	_ = b.Execute(context.Background(), func(ctx context.Context) error { return boom })
	time.Sleep(15 * time.Millisecond)
	if err := b.Execute(context.Background(), func(ctx context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("half-open failure: %v", err)
	}
	if b.State() != Open {
		t.Fatalf("state = %v after half-open failure, want open", b.State())
	}
}

func TestDefaultsApplied(t *testing.T) {
	b := New("test", Config{}, testLogger())
	if b.cfg.MaxFailures != 5 || b.cfg.ResetTimeout != 30*time.Second || b.cfg.SuccessesToClose != 1 {
		t.Errorf("zero config did not pick up defaults: %+v", b.cfg)
	}
}
