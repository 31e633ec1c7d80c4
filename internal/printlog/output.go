package printlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Labels are the words of the text report.
type Labels struct {
	Print  string // one copy
	Prints string // several copies
	Total  string
	Jobs   string
}

var (
	German  = Labels{Print: "Abzug", Prints: "Abzüge", Total: "Abzüge gesamt", Jobs: "Jobs"}
	English = Labels{Print: "print", Prints: "prints", Total: "prints total", Jobs: "jobs"}
)

// LabelsFor returns the labels for a language code ("de" or "en").
func LabelsFor(lang string) (Labels, error) {
	switch lang {
	case "", "de":
		return German, nil
	case "en":
		return English, nil
	}
	return Labels{}, fmt.Errorf("printlog: unsupported language %q", lang)
}

// WriteText writes the report in the classic layout:
//
//	   2 x	 1 Abzug
//	   1 x	 2 Abzüge
//	----------------------
//	   4 	Abzüge gesamt
//	   3 	Jobs
//
// listJobs prepends one "time copies job" line per job.
func (r *Report) WriteText(w io.Writer, l Labels, listJobs bool) error {
	bw := bufio.NewWriter(w)
	if listJobs {
		for _, j := range r.Jobs {
			fmt.Fprintf(bw, "%s %d %s\n", j.Time, j.Copies, j.Job)
		}
	}
	for _, b := range r.Buckets {
		word := l.Prints
		if b.Copies == 1 {
			word = l.Print
		}
		fmt.Fprintf(bw, "%4d x\t %d %s\n", b.Jobs, b.Copies, word)
	}
	fmt.Fprintln(bw, "----------------------")
	fmt.Fprintf(bw, "%4d \t%s\n", r.Total, l.Total)
	fmt.Fprintf(bw, "%4d \t%s\n", r.JobCount, l.Jobs)
	return bw.Flush()
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
