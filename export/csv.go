// Package export renders extracted records as CSV and keeps exported files
// in per-run session folders.
package export

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/purchase-export/extract"
)

// Encode renders records as CSV: a header row, then one row per record in
// order. Rows are separated by a newline with none after the last row.
// An empty slice encodes to the empty string.
func Encode(records []extract.Record) string {
	if len(records) == 0 {
		return ""
	}
	var buf bytes.Buffer
	// writes to a bytes.Buffer cannot fail
	_ = Write(&buf, records)
	return strings.TrimSuffix(buf.String(), "\n")
}

// Write streams records to w in the Encode format, terminated by a newline.
// Nothing is written for an empty slice.
func Write(w io.Writer, records []extract.Record) error {
	if len(records) == 0 {
		return nil
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(extract.Header); err != nil {
		return errors.Wrap(err, "failed to write CSV header")
	}
	for i, r := range records {
		if err := cw.Write(r.Values()); err != nil {
			return errors.Wrapf(err, "failed to write CSV row %d", i+1)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "failed to flush CSV")
}
