package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tomarrell/mailsift/internal/gmail"
)

// Status is the terminal state of one record for one pass.
type Status string

const (
	StatusSkipped          Status = "skipped" // no rule matched, or nothing left to do
	StatusPlanned          Status = "planned" // dry-run only
	StatusApplied          Status = "applied"
	StatusPartiallyApplied Status = "partially_applied"
	StatusFailed           Status = "failed"
)

// ActionFailure records one failed (record, action) pair for the caller to
// retry on a future pass.
type ActionFailure struct {
	RecordID gmail.MessageID `json:"record_id"`
	Action   string          `json:"action"`
	Err      string          `json:"error"`
}

// RecordOutcome is the per-record result.
type RecordOutcome struct {
	ID       gmail.MessageID `json:"id"`
	Status   Status          `json:"status"`
	Planned  int             `json:"planned"`
	Failures []ActionFailure `json:"failures,omitempty"`
}

// Report aggregates one full pass.
type Report struct {
	GeneratedAt      time.Time       `json:"generated_at"`
	Total            int             `json:"total"`
	Skipped          int             `json:"skipped"`
	Planned          int             `json:"planned"`
	Applied          int             `json:"applied"`
	PartiallyApplied int             `json:"partially_applied"`
	Failed           int             `json:"failed"`
	DryRun           bool            `json:"dry_run"`
	Failures         []ActionFailure `json:"failures,omitempty"`
}

func (r *Report) add(outcome RecordOutcome) {
	switch outcome.Status {
	case StatusSkipped:
		r.Skipped++
	case StatusPlanned:
		r.Planned++
	case StatusApplied:
		r.Applied++
	case StatusPartiallyApplied:
		r.PartiallyApplied++
	case StatusFailed:
		r.Failed++
	}
	r.Failures = append(r.Failures, outcome.Failures...)
}

// PrintHuman writes a readable report to the provided writer.
func PrintHuman(rep Report, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	var builder strings.Builder
	mode := ""
	if rep.DryRun {
		mode = " (dry-run)"
	}
	fmt.Fprintf(&builder, "mailsift pass%s — %d records\n", mode, rep.Total)
	if rep.DryRun {
		fmt.Fprintf(&builder, "  planned: %d\n", rep.Planned)
	} else {
		fmt.Fprintf(&builder, "  applied: %d\n", rep.Applied)
		if rep.PartiallyApplied > 0 {
			fmt.Fprintf(&builder, "  partially applied: %d\n", rep.PartiallyApplied)
		}
		if rep.Failed > 0 {
			fmt.Fprintf(&builder, "  failed: %d\n", rep.Failed)
		}
	}
	fmt.Fprintf(&builder, "  skipped: %d\n", rep.Skipped)
	if len(rep.Failures) > 0 {
		builder.WriteString("\nFailures:\n")
		sorted := append([]ActionFailure(nil), rep.Failures...)
		sort.Slice(sorted, func(i, j int) bool {
			if sorted[i].RecordID == sorted[j].RecordID {
				return sorted[i].Action < sorted[j].Action
			}
			return sorted[i].RecordID < sorted[j].RecordID
		})
		for _, f := range sorted {
			fmt.Fprintf(&builder, "  %s %s — %s\n", f.RecordID, f.Action, f.Err)
		}
	}
	if _, err := io.WriteString(w, builder.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteJSON serializes the report to disk.
func WriteJSON(rep Report, path string) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return fmt.Errorf("path must not be empty")
	}
	clean = filepath.Clean(clean)
	if filepath.IsAbs(clean) {
		return fmt.Errorf("output path must be relative, got %s", clean)
	}
	if strings.HasPrefix(clean, "..") {
		return fmt.Errorf("output path %s escapes working directory", clean)
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determine working directory: %w", err)
	}
	abs := filepath.Join(wd, clean)
	f, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create %s: %w", abs, err)
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if encodeErr := enc.Encode(rep); encodeErr != nil {
		return fmt.Errorf("encode report: %w", encodeErr)
	}
	return nil
}
