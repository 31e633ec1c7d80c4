package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fraxinas/photobooth/internal/printlog"
)

type reportFlags struct {
	merge     string
	lang      string
	json      bool
	jobs      bool
	strict    bool
	maxCopies int
	layout    printlog.Layout
}

func newReportCmd() *cobra.Command {
	flags := &reportFlags{layout: printlog.DefaultLayout()}

	cmd := &cobra.Command{
		Use:   "report [page_log]",
		Short: "Summarize a CUPS page log by copies per job",
		Long: `Reads a CUPS page log (default ` + printlog.DefaultPath + `, "-" for stdin),
counts the copies of every job and prints how many jobs had 1, 2, 3 ...
copies, followed by the total number of prints and jobs.`,
		Example: `  # Report of the booth printer
  boothctl report

  # Merge reprinted jobs, English labels
  boothctl report --merge sequence --lang en page_log

  # JSON for further processing
  cat page_log | boothctl report --json -`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := printlog.DefaultPath
			if len(args) == 1 {
				path = args[0]
			}
			return runReport(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), path, flags)
		},
	}

	cmd.Flags().StringVar(&flags.merge, "merge", "none", "How lines become jobs: none or sequence")
	cmd.Flags().StringVar(&flags.lang, "lang", "de", "Report language: de or en")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Write the report as JSON")
	cmd.Flags().BoolVar(&flags.jobs, "jobs", false, "List every job before the summary")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "Fail on the first malformed line")
	cmd.Flags().IntVar(&flags.maxCopies, "max-copies", printlog.DefaultMaxCopies, "Buckets 1..max-copies-1 are always shown")
	cmd.Flags().IntVar(&flags.layout.TimeField, "time-field", flags.layout.TimeField, "Zero-based column of the timestamp")
	cmd.Flags().IntVar(&flags.layout.CopiesField, "copies-field", flags.layout.CopiesField, "Zero-based column of the copy count")
	cmd.Flags().IntVar(&flags.layout.JobField, "job-field", flags.layout.JobField, "Zero-based column of the job name")

	return cmd
}

func runReport(stdin io.Reader, out, errOut io.Writer, path string, flags *reportFlags) error {
	merge, err := printlog.ParseMergeMode(flags.merge)
	if err != nil {
		return err
	}
	labels, err := printlog.LabelsFor(flags.lang)
	if err != nil {
		return err
	}
	if flags.layout.TimeField < 0 || flags.layout.CopiesField < 0 || flags.layout.JobField < 0 {
		return fmt.Errorf("field indexes must be >= 0")
	}

	in := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open page log: %w", err)
		}
		defer f.Close()
		in = f
	}

	rep, err := printlog.Read(in, printlog.Options{
		Layout:    &flags.layout,
		Merge:     merge,
		MaxCopies: flags.maxCopies,
		Strict:    flags.strict,
	})
	if err != nil {
		return err
	}
	if rep.Skipped > 0 {
		fmt.Fprintf(errOut, "warning: skipped %d malformed lines\n", rep.Skipped)
	}

	if flags.json {
		return rep.WriteJSON(out)
	}
	return rep.WriteText(out, labels, flags.jobs)
}
