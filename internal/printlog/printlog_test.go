package printlog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// logLine builds a page_log line with copies at field 5 and the job at field 10.
func logLine(job string, copies int) string {
	return fmt.Sprintf("Canon_CP910 pi 12 [14/Jan/2016:20:15:03 +0100] %d 1 - localhost photo %s", copies, job)
}

func logOf(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func TestParseLine(t *testing.T) {
	e, err := ParseLine(logLine("print.jpg", 2), 7, DefaultLayout())
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if e.Time != "14/Jan/2016:20:15:03" {
		t.Errorf("Time = %q", e.Time)
	}
	if e.Copies != 2 || e.Job != "print.jpg" || e.Line != 7 {
		t.Errorf("entry = %+v", e)
	}
}

func TestParseLine_Malformed(t *testing.T) {
	cases := []struct {
		name, line string
		want       error
	}{
		{"too_few_fields", "Canon_CP910 pi 12", errTooFewFields},
		{"copies_not_int", "p u 1 [t +0] x 1 - h n job", errBadCopies},
		{"copies_zero", logLine("a", 0), errBadCopies},
		{"double_space", strings.Replace(logLine("a", 1), " ", "  ", 1), errBadCopies},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseLine(tc.line, 1, DefaultLayout())
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
			var pe *ParseError
			if !errors.As(err, &pe) || pe.Line != 1 {
				t.Errorf("want *ParseError with line number, got %v", err)
			}
		})
	}
}

func TestRead_CountsCopiesAndJobs(t *testing.T) {
	in := logOf(logLine("a", 1), logLine("b", 2), logLine("c", 1))
	rep, err := Read(strings.NewReader(in), Options{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rep.Total != 4 {
		t.Errorf("Total = %d, want 4", rep.Total)
	}
	if rep.JobCount != 3 {
		t.Errorf("JobCount = %d, want 3", rep.JobCount)
	}
	if rep.Bucket(1) != 2 || rep.Bucket(2) != 1 {
		t.Errorf("buckets = %+v, want {1:2, 2:1}", rep.Buckets)
	}
}

func TestRead_BucketsSeededAndSorted(t *testing.T) {
	rep, err := Read(strings.NewReader(logOf(logLine("a", 8), logLine("b", 3))), Options{})
	if err != nil {
		t.Fatal(err)
	}
	var copies []int
	for _, b := range rep.Buckets {
		copies = append(copies, b.Copies)
	}
	want := []int{1, 2, 3, 4, 5, 8}
	if fmt.Sprint(copies) != fmt.Sprint(want) {
		t.Errorf("bucket keys = %v, want %v", copies, want)
	}
}

func TestRead_SkipsMalformedLines(t *testing.T) {
	in := logOf(logLine("a", 1), "garbage", "", logLine("b", 0), logLine("c", 2))
	rep, err := Read(strings.NewReader(in), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", rep.Skipped)
	}
	if rep.JobCount != 2 || rep.Total != 3 {
		t.Errorf("jobs=%d total=%d", rep.JobCount, rep.Total)
	}
}

func TestRead_StrictReportsLine(t *testing.T) {
	in := logOf(logLine("a", 1), "garbage")
	_, err := Read(strings.NewReader(in), Options{Strict: true})
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
	if pe.Line != 2 {
		t.Errorf("Line = %d, want 2", pe.Line)
	}
}

func TestRead_OverlongLine(t *testing.T) {
	long := logLine("b", 1) + " " + strings.Repeat("x", maxLineBytes)
	in := logOf(logLine("a", 2), long, logLine("c", 1))

	rep, err := Read(strings.NewReader(in), Options{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rep.Skipped != 1 || rep.JobCount != 2 || rep.Total != 3 {
		t.Errorf("skipped=%d jobs=%d total=%d, want 1/2/3", rep.Skipped, rep.JobCount, rep.Total)
	}

	_, err = Read(strings.NewReader(in), Options{Strict: true})
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Line != 2 || !errors.Is(err, errLineTooLong) {
		t.Fatalf("strict err = %v, want line 2 too long", err)
	}
	if len(pe.Text) > 64 {
		t.Errorf("error text should be truncated, got %d bytes", len(pe.Text))
	}
}

func TestRead_ExplicitZeroLayout(t *testing.T) {
	rep, err := Read(strings.NewReader("2\n1\n"), Options{Layout: &Layout{}})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rep.Total != 3 || rep.JobCount != 2 || rep.Jobs[0].Job != "2" {
		t.Errorf("report = %+v, want every column read from field 0", rep)
	}
}

func TestRead_SequenceMerge(t *testing.T) {
	in := logOf(
		logLine("a", 1),
		logLine("a", 3), // continues a: a now has 3 copies
		logLine("b", 2), // neither opens nor continues
		logLine("c", 1),
		logLine("d", 1),
	)
	rep, err := Read(strings.NewReader(in), Options{Merge: MergeSequence})
	if err != nil {
		t.Fatal(err)
	}
	if rep.JobCount != 3 {
		t.Errorf("JobCount = %d, want 3", rep.JobCount)
	}
	if rep.Total != 5 {
		t.Errorf("Total = %d, want 5", rep.Total)
	}
	if rep.Orphaned != 1 {
		t.Errorf("Orphaned = %d, want 1", rep.Orphaned)
	}
	if rep.Jobs[0].Job != "a" || rep.Jobs[0].Copies != 3 {
		t.Errorf("first job = %+v", rep.Jobs[0])
	}
}

func TestRead_TotalEqualsSumOfCopies(t *testing.T) {
	copies := []int{1, 4, 2, 2, 5, 1, 7, 3}
	var lines []string
	sum := 0
	for i, c := range copies {
		lines = append(lines, logLine(fmt.Sprintf("job%d", i), c))
		sum += c
	}
	rep, err := Read(strings.NewReader(logOf(lines...)), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if rep.Total != sum || rep.JobCount != len(copies) {
		t.Errorf("total=%d jobs=%d, want %d/%d", rep.Total, rep.JobCount, sum, len(copies))
	}
	bucketJobs := 0
	for _, b := range rep.Buckets {
		bucketJobs += b.Jobs
	}
	if bucketJobs != rep.JobCount {
		t.Errorf("bucket sum = %d, want %d", bucketJobs, rep.JobCount)
	}
}

func TestWriteText_Format(t *testing.T) {
	in := logOf(logLine("a", 1), logLine("b", 2), logLine("c", 1))
	rep, err := Read(strings.NewReader(in), Options{})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := rep.WriteText(&buf, German, false); err != nil {
		t.Fatal(err)
	}
	want := "" +
		"   2 x\t 1 Abzug\n" +
		"   1 x\t 2 Abzüge\n" +
		"   0 x\t 3 Abzüge\n" +
		"   0 x\t 4 Abzüge\n" +
		"   0 x\t 5 Abzüge\n" +
		"----------------------\n" +
		"   4 \tAbzüge gesamt\n" +
		"   3 \tJobs\n"
	if buf.String() != want {
		t.Errorf("text report =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWriteText_JobListAndEnglish(t *testing.T) {
	rep, _ := Read(strings.NewReader(logOf(logLine("a", 2))), Options{})
	var buf bytes.Buffer
	if err := rep.WriteText(&buf, English, true); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "14/Jan/2016:20:15:03 2 a\n") {
		t.Errorf("job list missing: %q", out)
	}
	if !strings.Contains(out, "   1 x\t 2 prints\n") || !strings.Contains(out, "   2 \tprints total\n") {
		t.Errorf("english labels missing: %q", out)
	}
}

func TestOutput_Idempotent(t *testing.T) {
	in := logOf(logLine("a", 1), logLine("b", 9), logLine("c", 3), logLine("d", 1))
	render := func() (string, string) {
		rep, err := Read(strings.NewReader(in), Options{})
		if err != nil {
			t.Fatal(err)
		}
		var text, js bytes.Buffer
		_ = rep.WriteText(&text, German, true)
		_ = rep.WriteJSON(&js)
		return text.String(), js.String()
	}
	t1, j1 := render()
	t2, j2 := render()
	if t1 != t2 || j1 != j2 {
		t.Error("report output must be identical for identical input")
	}
}

func TestWriteJSON(t *testing.T) {
	rep, _ := Read(strings.NewReader(logOf(logLine("a", 2))), Options{})
	var buf bytes.Buffer
	if err := rep.WriteJSON(&buf); err != nil {
		t.Fatal(err)
	}
	var got struct {
		Total    int `json:"total"`
		JobCount int `json:"job_count"`
		Jobs     []struct {
			Job    string `json:"job"`
			Copies int    `json:"copies"`
		} `json:"jobs"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Total != 2 || got.JobCount != 1 || len(got.Jobs) != 1 || got.Jobs[0].Job != "a" {
		t.Errorf("json = %s", buf.String())
	}
}

func TestParseMergeMode(t *testing.T) {
	if m, err := ParseMergeMode(""); err != nil || m != MergeNone {
		t.Errorf("empty = %q, %v", m, err)
	}
	if m, err := ParseMergeMode("sequence"); err != nil || m != MergeSequence {
		t.Errorf("sequence = %q, %v", m, err)
	}
	if _, err := ParseMergeMode("by-job"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestLabelsFor(t *testing.T) {
	if l, _ := LabelsFor(""); l != German {
		t.Error("default labels should be German")
	}
	if _, err := LabelsFor("fr"); err == nil {
		t.Error("expected error for unsupported language")
	}
}
