package main

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"

	"github.com/purchase-export/export"
	"github.com/purchase-export/extract"
)

// progressView renders run progress: a spinner while the page is checked
// and loaded, then a bar over the purchases being read.
type progressView struct {
	mu      sync.Mutex
	spinner *pterm.SpinnerPrinter
	bar     *pterm.ProgressbarPrinter
}

func newProgressView() *progressView {
	return &progressView{}
}

// Update is installed as the orchestrator's progress callback.
func (v *progressView) Update(p extract.Progress) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch p.Phase {
	case extract.PhaseValidating, extract.PhaseLoading:
		text := phaseText(p)
		if v.spinner == nil {
			v.spinner, _ = pterm.DefaultSpinner.Start(text)
			return
		}
		v.spinner.UpdateText(text)

	case extract.PhaseProcessing:
		if v.bar == nil {
			if v.spinner != nil {
				v.spinner.Success(fmt.Sprintf("%d purchases loaded", p.Total))
				v.spinner = nil
			}
			v.bar, _ = pterm.DefaultProgressbar.WithTotal(p.Total).WithTitle("Reading purchases").Start()
		}
		if v.bar != nil && p.Current > v.bar.Current {
			v.bar.Add(p.Current - v.bar.Current)
		}
	}
}

// Stop clears whatever is still on screen. It is safe to call twice.
func (v *progressView) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.spinner != nil {
		_ = v.spinner.Stop()
		v.spinner = nil
	}
	if v.bar != nil {
		_, _ = v.bar.Stop()
		v.bar = nil
	}
}

func phaseText(p extract.Progress) string {
	if p.Phase == extract.PhaseValidating {
		return "Checking page structure..."
	}
	return fmt.Sprintf("Loading %d purchases...", p.Total)
}

// outcomeMessage summarizes a finished export in one line and tells
// whether it counts as a failure.
func outcomeMessage(out *export.Outcome) (string, bool) {
	res := out.Result
	saved := "nothing was saved"
	if out.Path != "" {
		saved = "saved to " + out.Path
	}

	switch {
	case res.Status == extract.StatusValidationFailed:
		return "The page structure has changed; nothing was exported", true
	case len(res.Records) == 0:
		return "No purchases were found", false
	case res.Status == extract.StatusCancelled:
		return fmt.Sprintf("Stopped early: %d items from the purchases read so far, %s", len(res.Records), saved), false
	case res.Stalled():
		return fmt.Sprintf("Only %d of %d purchases could be loaded: %d items %s", res.LoadedCount, res.Requested, len(res.Records), saved), false
	default:
		return fmt.Sprintf("Exported %d items from %d purchases, %s", len(res.Records), res.LoadedCount, saved), false
	}
}

func printOutcome(out *export.Outcome) error {
	msg, failed := outcomeMessage(out)
	res := out.Result
	switch {
	case failed:
		renderValidation(res.Validation)
		return res.Validation.Err()
	case res.Status == extract.StatusCancelled || res.Stalled() || len(res.Records) == 0:
		pterm.Warning.Println(msg)
	default:
		pterm.Success.Println(msg)
	}
	renderFaults(res.Faults)
	return nil
}

func validationTable(v *extract.ValidationResult) pterm.TableData {
	data := pterm.TableData{{"Level", "Field", "Problem"}}
	for _, e := range v.Errors {
		data = append(data, []string{"error", e.Field, e.Message})
	}
	for _, w := range v.Warnings {
		data = append(data, []string{"warning", w.Field, w.Message})
	}
	return data
}

func renderValidation(v *extract.ValidationResult) {
	if v == nil || (len(v.Errors) == 0 && len(v.Warnings) == 0) {
		return
	}
	pterm.DefaultSection.Printf("Page check against schema %s", v.SchemaVersion)
	_ = pterm.DefaultTable.WithHasHeader().WithData(validationTable(v)).Render()
	if err := v.Err(); err != nil {
		for _, hint := range errors.GetAllHints(err) {
			pterm.Info.Println(hint)
		}
	}
}

func faultTable(faults []extract.ContainerFault) pterm.TableData {
	data := pterm.TableData{{"#", "Order", "Error"}}
	for _, f := range faults {
		data = append(data, []string{strconv.Itoa(f.Index + 1), f.OrderID, f.Err.Error()})
	}
	return data
}

func renderFaults(faults []extract.ContainerFault) {
	if len(faults) == 0 {
		return
	}
	pterm.Warning.Printf("%d purchases could not be read and were skipped\n", len(faults))
	_ = pterm.DefaultTable.WithHasHeader().WithData(faultTable(faults)).Render()
}
