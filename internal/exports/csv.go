package exports

import (
	"encoding/csv"
	"foodflow/internal/core"
	"io"
	"strconv"
	"strings"
	"time"
)

var recordHeader = []string{
	"completed_at", "parcel", "crop", "action", "reason",
	"risk", "confidence", "impact_saved_kg",
}

// WriteRecordsCSV renders completed field records as CSV with a header row.
// Text cells that a spreadsheet would evaluate as a formula are prefixed
// with a single quote.
func WriteRecordsCSV(w io.Writer, records []core.FieldRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(recordHeader); err != nil {
		return err
	}
	for _, rec := range records {
		completed := ""
		if rec.Advisory.CompletedAt != nil {
			completed = rec.Advisory.CompletedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			completed,
			escapeFormula(rec.ParcelName),
			escapeFormula(rec.CropType),
			escapeFormula(rec.Advisory.Action),
			escapeFormula(rec.Advisory.Reason),
			string(rec.Advisory.Risk),
			strconv.Itoa(rec.Advisory.Confidence),
			strconv.FormatFloat(rec.Advisory.ImpactSavedKg, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func escapeFormula(cell string) string {
	if cell != "" && strings.ContainsRune("=+-@\t\r", rune(cell[0])) {
		return "'" + cell
	}
	return cell
}
