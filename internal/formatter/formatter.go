// package formatter provides functions to export job history to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/biy/internal/models"
	"github.com/desertthunder/biy/internal/shared"
	"github.com/dustin/go-humanize"
)

// Format names an export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

// ParseFormat accepts a format name or a common alias (md, txt).
func ParseFormat(name string) (Format, error) {
	switch name {
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "text", "txt", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, name)
	}
}

// Extension returns the file extension for the format.
func (f Format) Extension() string {
	switch f {
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// ExportToCSV converts jobs to CSV format with columns: Sequence, Session, Source, Filename, Bytes, State, Status,
// Result, Error, Submitted, Duration
func ExportToCSV(jobs []*models.Job) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Sequence", "Session", "Source", "Filename", "Bytes", "State", "Status", "Result", "Error", "Submitted", "Duration"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, job := range jobs {
		record := []string{
			strconv.Itoa(job.Sequence()),
			job.SessionID(),
			string(job.Source()),
			job.Filename(),
			strconv.Itoa(job.SizeBytes()),
			job.State().String(),
			job.StatusMessage(),
			strconv.Itoa(job.ResultLength()),
			job.ErrorMessage(),
			job.SubmittedAt().UTC().Format(time.RFC3339),
			formatDuration(job.Duration()),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts jobs to a Markdown table under title
func ExportToMarkdown(jobs []*models.Job, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Job History"
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	buf.WriteString(fmt.Sprintf("**Jobs**: %d\n\n", len(jobs)))

	if len(jobs) == 0 {
		return buf.Bytes(), nil
	}

	buf.WriteString("| # | File | Source | Size | State | Duration | Detail |\n")
	buf.WriteString("|---|------|--------|------|-------|----------|--------|\n")
	for _, job := range jobs {
		detail := job.StatusMessage()
		if job.ErrorMessage() != "" {
			detail = job.ErrorMessage()
		}
		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %s | %s |\n",
			job.Sequence(),
			job.Filename(),
			job.Source(),
			humanize.Bytes(uint64(job.SizeBytes())),
			job.State(),
			formatDuration(job.Duration()),
			detail,
		))
	}

	return buf.Bytes(), nil
}

// ExportToText converts jobs to plain text format
func ExportToText(jobs []*models.Job) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Jobs: %d\n\n", len(jobs)))

	for _, job := range jobs {
		buf.WriteString(fmt.Sprintf("%d. %s (%s, %s) %s",
			job.Sequence(), job.Filename(), job.Source(), humanize.Bytes(uint64(job.SizeBytes())), job.State()))
		if d := job.Duration(); d > 0 {
			buf.WriteString(fmt.Sprintf(" in %s", formatDuration(d)))
		}
		if job.ErrorMessage() != "" {
			buf.WriteString(fmt.Sprintf(": %s", job.ErrorMessage()))
		}
		buf.WriteString(fmt.Sprintf(" [%s]\n", humanize.Time(job.SubmittedAt())))
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts jobs to an indented JSON array of [models.JobView]
func ExportToJSON(jobs []*models.Job) ([]byte, error) {
	views := make([]models.JobView, len(jobs))
	for i, job := range jobs {
		views[i] = job.View()
	}

	data, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return append(data, '\n'), nil
}

// Export renders jobs in the given format.
func Export(jobs []*models.Job, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(jobs)
	case FormatMarkdown:
		return ExportToMarkdown(jobs, "")
	case FormatJSON:
		return ExportToJSON(jobs)
	default:
		return ExportToText(jobs)
	}
}

// WriteExport writes jobs to path in the given format.
//
// Defaults to jobs{ext} as the filename.
func WriteExport(jobs []*models.Job, format Format, path string) (string, error) {
	if path == "" {
		path = "jobs" + format.Extension()
	}

	data, err := Export(jobs, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}

	return path, nil
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}
