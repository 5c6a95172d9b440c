package server

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/purchase-export/export"
	"github.com/purchase-export/extract"
)

// exportResponse builds the reply to an export request. Field names follow
// the browser popup protocol: success, csv, processedCount, wasCancelled,
// error and details.
func exportResponse(out *export.Outcome, err error) map[string]any {
	if err != nil {
		m := map[string]any{
			"success":        false,
			"wasCancelled":   false,
			"processedCount": 0,
			"error":          err.Error(),
		}
		if hints := errors.GetAllHints(err); len(hints) > 0 {
			m["hint"] = strings.Join(hints, "; ")
		}
		return m
	}

	res := out.Result
	m := map[string]any{
		"success":        res.Status == extract.StatusSuccess,
		"status":         string(res.Status),
		"runId":          res.RunID,
		"csv":            out.CSV,
		"path":           out.Path,
		"requested":      res.Requested,
		"loadedCount":    res.LoadedCount,
		"processedCount": len(res.Records),
		"wasCancelled":   res.Status == extract.StatusCancelled,
		"faults":         len(res.Faults),
	}
	if res.Status == extract.StatusValidationFailed {
		verr := res.Validation.Err()
		m["error"] = verr.Error()
		m["hint"] = strings.Join(errors.GetAllHints(verr), "; ")
		m["details"] = validationDetails(res.Validation)
	}
	return m
}

func validationDetails(v *extract.ValidationResult) map[string]any {
	return map[string]any{
		"isValid":       v.IsValid,
		"schemaVersion": v.SchemaVersion,
		"timestamp":     v.Timestamp.Format(time.RFC3339),
		"errors":        validationErrors(v.Errors),
		"warnings":      validationErrors(v.Warnings),
	}
}

func validationErrors(errs []extract.ValidationError) []any {
	out := make([]any, 0, len(errs))
	for _, e := range errs {
		out = append(out, map[string]any{
			"message":   e.Message,
			"field":     e.Field,
			"timestamp": e.Timestamp.Format(time.RFC3339),
		})
	}
	return out
}

// sessionResponse lists the files of the latest export session.
func sessionResponse(s *export.Session) map[string]any {
	files := []any{}
	folder := ""
	if s != nil {
		folder = s.Folder
		for _, f := range s.Files {
			files = append(files, map[string]any{
				"filename": f.Name,
				"content":  string(f.Content),
				"size":     len(f.Content),
			})
		}
	}
	return map[string]any{
		"sessionFolder": folder,
		"files":         files,
	}
}
