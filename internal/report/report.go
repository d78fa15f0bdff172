// Package report builds and renders the summary of a balancing run.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"
)

// Directory statuses as they appear in a report.
const (
	StatusCompleted = "COMPLETED"
	StatusSkipped   = "SKIPPED"
	StatusFailed    = "FAILED"
)

// Format selects the machine-readable report encoding.
type Format string

const (
	// FormatJSON encodes the report as indented JSON.
	FormatJSON Format = "json"
	// FormatYAML encodes the report as YAML.
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned for an unsupported report format.
var ErrUnknownFormat = errors.New("report: unknown format")

// ParseFormat converts a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Extension returns the file extension for the format.
func (f Format) Extension() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// FileError is a failure on a single file within a directory.
type FileError struct {
	File  string `json:"file" yaml:"file"`
	Error string `json:"error" yaml:"error"`
}

// Directory is the outcome of balancing one directory.
type Directory struct {
	Path        string      `json:"directory" yaml:"directory"`
	Status      string      `json:"status" yaml:"status"`
	BeforeCount int         `json:"before_count" yaml:"before_count"`
	AfterCount  int         `json:"after_count" yaml:"after_count"`
	Created     []string    `json:"created,omitempty" yaml:"created,omitempty"`
	Errors      []FileError `json:"errors,omitempty" yaml:"errors,omitempty"`
	Error       string      `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summary holds run totals.
type Summary struct {
	Directories int `json:"directories" yaml:"directories"`
	Completed   int `json:"completed" yaml:"completed"`
	Skipped     int `json:"skipped" yaml:"skipped"`
	Failed      int `json:"failed" yaml:"failed"`
	Created     int `json:"created" yaml:"created"`
	FileErrors  int `json:"file_errors" yaml:"file_errors"`
}

// Report is the structured result of a balancing run.
type Report struct {
	RunID       string      `json:"run_id" yaml:"run_id"`
	Target      int         `json:"target" yaml:"target"`
	StartedAt   time.Time   `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time   `json:"finished_at" yaml:"finished_at"`
	Summary     Summary     `json:"summary" yaml:"summary"`
	Directories []Directory `json:"directories" yaml:"directories"`
}

// New assembles a report, ordering directories by path and computing totals.
func New(runID string, target int, startedAt, finishedAt time.Time, dirs []Directory) *Report {
	sorted := make([]Directory, len(dirs))
	copy(sorted, dirs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	r := &Report{
		RunID:       runID,
		Target:      target,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
		Directories: sorted,
	}
	r.Summary.Directories = len(sorted)
	for _, d := range sorted {
		switch d.Status {
		case StatusCompleted:
			r.Summary.Completed++
		case StatusSkipped:
			r.Summary.Skipped++
		case StatusFailed:
			r.Summary.Failed++
		}
		r.Summary.Created += len(d.Created)
		r.Summary.FileErrors += len(d.Errors)
	}
	return r
}

// HasFailures returns true if any directory failed.
func (r *Report) HasFailures() bool {
	return r.Summary.Failed > 0
}

// Encode writes the report in the given format.
func (r *Report) Encode(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// Table renders a human readable summary, failed directories first.
func (r *Report) Table() string {
	rows := make([]Directory, len(r.Directories))
	copy(rows, r.Directories)
	sort.SliceStable(rows, func(i, j int) bool {
		return (rows[i].Status == StatusFailed) && (rows[j].Status != StatusFailed)
	})

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Directory", "Status", "Before", "After", "Errors"})
	for _, d := range rows {
		errs := strconv.Itoa(len(d.Errors))
		if d.Error != "" {
			errs = d.Error
		}
		tw.AppendRow(table.Row{d.Path, d.Status, d.BeforeCount, d.AfterCount, errs})
	}
	tw.AppendFooter(table.Row{
		fmt.Sprintf("%d directories", r.Summary.Directories),
		fmt.Sprintf("%d ok / %d skipped / %d failed", r.Summary.Completed, r.Summary.Skipped, r.Summary.Failed),
		"",
		fmt.Sprintf("+%d", r.Summary.Created),
		strconv.Itoa(r.Summary.FileErrors),
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	return tw.Render()
}
