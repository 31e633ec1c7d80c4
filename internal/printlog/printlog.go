// Package printlog summarizes the CUPS page log of the booth printer:
// how many jobs were printed with how many copies each.
package printlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// DefaultPath is where CUPS writes the page log.
const DefaultPath = "/var/log/cups/page_log"

// DefaultMaxCopies seeds buckets 1..DefaultMaxCopies-1.
const DefaultMaxCopies = 6

// Layout names the zero-based columns of a page log line.
type Layout struct {
	TimeField   int `json:"time_field"`
	CopiesField int `json:"copies_field"`
	JobField    int `json:"job_field"`
}

// DefaultLayout matches the page_log lines written by the booth printer.
func DefaultLayout() Layout {
	return Layout{TimeField: 3, CopiesField: 5, JobField: 10}
}

func (l Layout) minFields() int {
	return max(l.TimeField, l.CopiesField, l.JobField) + 1
}

// MergeMode decides how lines become jobs.
type MergeMode string

const (
	// MergeNone counts every line as one job.
	MergeNone MergeMode = "none"
	// MergeSequence opens a job on a line with one copy; a directly
	// following line of the same job replaces it.
	MergeSequence MergeMode = "sequence"
)

// ParseMergeMode validates a mode name. Empty means MergeNone.
func ParseMergeMode(s string) (MergeMode, error) {
	switch MergeMode(s) {
	case "", MergeNone:
		return MergeNone, nil
	case MergeSequence:
		return MergeSequence, nil
	}
	return "", fmt.Errorf("printlog: unknown merge mode %q (want none or sequence)", s)
}

// Entry is one parsed log line.
type Entry struct {
	Line   int      `json:"line"`
	Time   string   `json:"time"`
	Copies int      `json:"copies"`
	Job    string   `json:"job"`
	Fields []string `json:"-"`
}

// ParseError reports a malformed line.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v: %q", e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	errTooFewFields = errors.New("too few fields")
	errBadCopies    = errors.New("copies is not a positive integer")
	errLineTooLong  = fmt.Errorf("line longer than %d bytes", maxLineBytes)
)

// maxLineBytes bounds one page_log line.
const maxLineBytes = 64 << 10

// ParseLine splits line on single spaces and extracts the columns of layout.
func ParseLine(line string, n int, layout Layout) (Entry, error) {
	fields := strings.Split(line, " ")
	if len(fields) < layout.minFields() {
		return Entry{}, &ParseError{Line: n, Text: line, Err: errTooFewFields}
	}
	copies, err := strconv.Atoi(fields[layout.CopiesField])
	if err != nil || copies < 1 {
		return Entry{}, &ParseError{Line: n, Text: line, Err: errBadCopies}
	}
	return Entry{
		Line:   n,
		Time:   strings.TrimPrefix(fields[layout.TimeField], "["),
		Copies: copies,
		Job:    fields[layout.JobField],
		Fields: fields,
	}, nil
}

// Options controls Read.
type Options struct {
	Layout    *Layout // nil = DefaultLayout()
	Merge     MergeMode
	MaxCopies int
	// Strict makes the first malformed line an error instead of skipping it.
	Strict bool
}

func (o Options) withDefaults() Options {
	if o.Layout == nil {
		l := DefaultLayout()
		o.Layout = &l
	}
	if o.Merge == "" {
		o.Merge = MergeNone
	}
	if o.MaxCopies <= 0 {
		o.MaxCopies = DefaultMaxCopies
	}
	return o
}

// Read parses a page log and builds the report.
func Read(r io.Reader, opts Options) (*Report, error) {
	opts = opts.withDefaults()

	var (
		entries []Entry
		skipped int
	)
	br := bufio.NewReader(r)
	for n := 1; ; n++ {
		line, err := readLine(br)
		if errors.Is(err, io.EOF) {
			break
		}
		var e Entry
		switch {
		case errors.Is(err, errLineTooLong):
			err = &ParseError{Line: n, Text: line, Err: err}
		case err != nil:
			return nil, fmt.Errorf("read page log: %w", err)
		case strings.TrimSpace(line) == "":
			continue
		default:
			e, err = ParseLine(line, n, *opts.Layout)
		}
		if err != nil {
			if opts.Strict {
				return nil, err
			}
			skipped++
			continue
		}
		entries = append(entries, e)
	}

	rep := Build(entries, opts)
	rep.Skipped = skipped
	return rep, nil
}

// readLine returns the next line without its line ending. A line over
// maxLineBytes is consumed and reported as errLineTooLong with its first
// 64 bytes.
func readLine(br *bufio.Reader) (string, error) {
	var (
		buf     []byte
		tooLong bool
	)
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			return "", err
		}
		if !tooLong && len(buf)+len(chunk) > maxLineBytes {
			tooLong = true
			buf = buf[:min(len(buf), 64)]
		}
		if !tooLong {
			buf = append(buf, chunk...)
		}
		if !isPrefix {
			break
		}
	}
	if tooLong {
		return string(buf), errLineTooLong
	}
	return string(buf), nil
}

// Bucket counts the jobs printed with a given number of copies.
type Bucket struct {
	Copies int `json:"copies"`
	Jobs   int `json:"jobs"`
}

// Report is the summary of a page log.
type Report struct {
	Jobs     []Entry  `json:"jobs"`
	Buckets  []Bucket `json:"buckets"`
	Total    int      `json:"total"`
	JobCount int      `json:"job_count"`
	Skipped  int      `json:"skipped"`
	Orphaned int      `json:"orphaned"`
}

// Build merges parsed entries into jobs and counts them.
func Build(entries []Entry, opts Options) *Report {
	opts = opts.withDefaults()
	rep := &Report{Jobs: []Entry{}}

	switch opts.Merge {
	case MergeSequence:
		for _, e := range entries {
			switch {
			case e.Copies == 1:
				rep.Jobs = append(rep.Jobs, e)
			case len(rep.Jobs) > 0 && rep.Jobs[len(rep.Jobs)-1].Job == e.Job:
				rep.Jobs[len(rep.Jobs)-1] = e
			default:
				rep.Orphaned++
			}
		}
	default:
		rep.Jobs = append(rep.Jobs, entries...)
	}

	counts := make(map[int]int, opts.MaxCopies)
	for c := 1; c < opts.MaxCopies; c++ {
		counts[c] = 0
	}
	for _, j := range rep.Jobs {
		counts[j.Copies]++
		rep.Total += j.Copies
		rep.JobCount++
	}

	rep.Buckets = make([]Bucket, 0, len(counts))
	for c, n := range counts {
		rep.Buckets = append(rep.Buckets, Bucket{Copies: c, Jobs: n})
	}
	sort.Slice(rep.Buckets, func(i, j int) bool { return rep.Buckets[i].Copies < rep.Buckets[j].Copies })
	return rep
}

// Bucket returns the job count for copies.
func (r *Report) Bucket(copies int) int {
	for _, b := range r.Buckets {
		if b.Copies == copies {
			return b.Jobs
		}
	}
	return 0
}
