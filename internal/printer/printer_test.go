package printer

import (
	"context"
	"errors"
	"testing"

	"github.com/fraxinas/photobooth/internal/proc"
)

func TestPrint_Command(t *testing.T) {
	cases := []struct {
		name, dest string
		copies     int
		want       string
	}{
		{"default_printer", "", 1, "lp -n 1 print.jpg"},
		{"named_printer", "Canon_CP910", 3, "lp -n 3 -d Canon_CP910 print.jpg"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &proc.Recorder{}
			p := New(rec, "", tc.dest, 5)
			if _, err := p.Print(context.Background(), "print.jpg", tc.copies); err != nil {
				t.Fatalf("Print: %v", err)
			}
			if got := rec.Commands(); len(got) != 1 || got[0] != tc.want {
				t.Errorf("commands = %v, want %q", got, tc.want)
			}
		})
	}
}

func TestPrint_InvalidCopies(t *testing.T) {
	rec := &proc.Recorder{}
	p := New(rec, "lp", "", 5)
	for _, n := range []int{0, -1, 6} {
		if _, err := p.Print(context.Background(), "print.jpg", n); !errors.Is(err, ErrInvalidCopies) {
			t.Errorf("copies %d: err = %v, want ErrInvalidCopies", n, err)
		}
	}
	if len(rec.Calls()) != 0 {
		t.Error("lp must not run for invalid copies")
	}
}

func TestPrint_JobID(t *testing.T) {
	rec := &proc.Recorder{OnRun: func(proc.Call) ([]byte, error) {
		return []byte("request id is Canon_CP910-42 (1 file(s))\n"), nil
	}}
	job, err := New(rec, "lp", "", 0).Print(context.Background(), "print.jpg", 2)
	if err != nil {
		t.Fatal(err)
	}
	if job != "Canon_CP910-42" {
		t.Errorf("job = %q", job)
	}
}

func TestPrint_LPFailure(t *testing.T) {
	rec := &proc.Recorder{OnRun: func(proc.Call) ([]byte, error) {
		return nil, &proc.ExitError{Command: "lp", ExitCode: 1, Output: "lp: The printer or class does not exist."}
	}}
	_, err := New(rec, "lp", "nope", 0).Print(context.Background(), "print.jpg", 1)
	var ee *proc.ExitError
	if !errors.As(err, &ee) {
		t.Errorf("err = %v, want *proc.ExitError", err)
	}
}
