// Package cli provides output helpers for the Nikki command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/nikki/internal/models"
	"github.com/hyperjump/nikki/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates an output format token.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteEntries writes journal entries to w in the given format.
func WriteEntries(w io.Writer, entries []*models.JournalEntry, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries.")
		return nil
	}
	for _, entry := range entries {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%s  %s\n", entry.CreatedAt.Format("2006-01-02 15:04"), entry.Title)
		fmt.Fprintf(w, "ID: %s\n\n%s\n\n", entry.ID, utils.Truncate(entry.Content, 200))
	}
	return nil
}

// WriteChatResult writes a chat answer and its sources to w.
func WriteChatResult(w io.Writer, result *models.ChatResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "\n%s\n", result.Answer)
	if len(result.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for _, src := range result.Sources {
			fmt.Fprintf(w, "  %s  (entry %s)\n", src.Date, src.SourceID)
		}
	}
	return nil
}

// WriteJob writes a summarization job's state, and its result or error when
// terminal.
func WriteJob(w io.Writer, job *models.Job, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, job)
	}
	fmt.Fprintf(w, "job:    %s\n", job.ID)
	fmt.Fprintf(w, "period: %s  (%s .. %s)\n", job.Period, job.StartDate, job.EndDate)
	fmt.Fprintf(w, "state:  %s\n", job.State)
	switch {
	case job.Result != "":
		fmt.Fprintf(w, "\n%s\n", job.Result)
	case job.Error != nil:
		fmt.Fprintf(w, "error:  [%s] %s\n", job.Error.Kind, job.Error.Message)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
