// Package printer submits prints to CUPS with lp.
package printer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fraxinas/photobooth/internal/debug"
	"github.com/fraxinas/photobooth/internal/proc"
)

// ErrInvalidCopies is returned for a copy count outside 1..max.
var ErrInvalidCopies = errors.New("printer: invalid number of copies")

// Printer prints through lp.
type Printer struct {
	runner    proc.Runner
	command   string
	dest      string
	maxCopies int
}

// New returns a printer. dest is the CUPS destination, empty = default.
func New(r proc.Runner, command, dest string, maxCopies int) *Printer {
	if command == "" {
		command = "lp"
	}
	return &Printer{runner: r, command: command, dest: dest, maxCopies: maxCopies}
}

// MaxCopies returns the upper copy limit (0 = unlimited).
func (p *Printer) MaxCopies() int { return p.maxCopies }

// Print runs lp -n copies [-d dest] path and returns the job id
// reported by lp, if any.
func (p *Printer) Print(ctx context.Context, path string, copies int) (string, error) {
	if copies < 1 || (p.maxCopies > 0 && copies > p.maxCopies) {
		return "", fmt.Errorf("%w: %d", ErrInvalidCopies, copies)
	}
	args := []string{"-n", strconv.Itoa(copies)}
	if p.dest != "" {
		args = append(args, "-d", p.dest)
	}
	args = append(args, path)

	out, err := p.runner.Run(ctx, p.command, args...)
	if err != nil {
		return "", fmt.Errorf("print: %w", err)
	}
	job := parseJobID(string(out))
	debug.Info("Printing %d x %s (job %s)", copies, path, job)
	return job, nil
}

// parseJobID extracts the id from "request id is Canon_CP910-42 (1 file(s))".
func parseJobID(out string) string {
	const marker = "request id is "
	i := strings.Index(out, marker)
	if i < 0 {
		return ""
	}
	rest := out[i+len(marker):]
	if j := strings.IndexAny(rest, " \n"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}
