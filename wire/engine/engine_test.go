package engine

import (
	"context"
	"errors"
	"testing"
)

// TestOutcomeTag checks the status tag rendering
func TestOutcomeTag(t *testing.T) {
	cases := map[string]struct {
		outcome Outcome
		want    string
	}{
		"select":    {Outcome{Verb: "SELECT", RowCount: 3}, "SELECT 3"},
		"insert":    {Outcome{Verb: "INSERT", RowCount: 1}, "INSERT 1"},
		"zero rows": {Outcome{Verb: "SELECT", RowCount: 0}, "SELECT 0"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := tc.outcome.Tag(); got != tc.want {
				t.Errorf("Tag() = %q, expected %q", got, tc.want)
			}
		})
	}
}

// TestSliceStream checks row order, exhaustion and context cancellation
func TestSliceStream(t *testing.T) {
	rows := []Row{{[]byte("a")}, {[]byte("b")}}
	s := NewSliceStream(rows, Outcome{Verb: "SELECT", RowCount: 2})

	ctx := context.Background()
	for i, want := range rows {
		row, ok, err := s.Next(ctx)
		if err != nil || !ok {
			t.Fatalf("Next %d: ok=%t err=%v", i, ok, err)
		}
		if string(row[0]) != string(want[0]) {
			t.Errorf("Row %d is %q, expected %q", i, row[0], want[0])
		}
	}

	if _, ok, err := s.Next(ctx); ok || err != nil {
		t.Errorf("Exhausted stream returned ok=%t err=%v", ok, err)
	}
	if tag := s.Outcome().Tag(); tag != "SELECT 2" {
		t.Errorf("Outcome tag is %q", tag)
	}

	// A canceled context stops the stream
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	fresh := NewSliceStream(rows, Outcome{})
	if _, _, err := fresh.Next(canceled); !errors.Is(err, context.Canceled) {
		t.Errorf("Next on canceled context returned %v", err)
	}
}

// TestEchoEngine checks the placeholder engine's contract
func TestEchoEngine(t *testing.T) {
	s, err := NewEchoEngine().Execute(context.Background(), "SELECT 42")
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	row, ok, err := s.Next(context.Background())
	if err != nil || !ok {
		t.Fatalf("Next: ok=%t err=%v", ok, err)
	}
	if string(row[0]) != "SELECT 42" {
		t.Errorf("Echoed %q", row[0])
	}
	if _, ok, _ := s.Next(context.Background()); ok {
		t.Error("Echo stream produced more than one row")
	}
	if tag := s.Outcome().Tag(); tag != "ECHO 1" {
		t.Errorf("Outcome tag is %q", tag)
	}
}

// TestFatalError checks the fatal classification helpers
func TestFatalError(t *testing.T) {
	plain := errors.New("syntax error")
	if IsFatal(plain) {
		t.Error("Plain error classified as fatal")
	}

	fatal := Fatal(errors.New("storage corrupt"))
	if !IsFatal(fatal) {
		t.Error("Fatal error not classified as fatal")
	}
	if !errors.Is(fatal, errors.Unwrap(fatal)) {
		t.Error("Fatal error doesn't unwrap to its cause")
	}
}
