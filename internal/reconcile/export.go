package reconcile

import (
	"strings"
	"time"

	"leadcapture/internal/lead/models"
)

var exportHeader = []string{"Date", "Nom", "Email", "Téléphone", "Société", "Source"}

// ToCSV renders records in the given order. Every data cell is quoted with
// embedded quotes doubled; lines are joined with "\n" and there is no trailing
// newline.
func ToCSV(records []models.LeadRecord) string {
	var b strings.Builder
	b.WriteString(strings.Join(exportHeader, ","))
	for _, r := range records {
		b.WriteByte('\n')
		for i, v := range []string{r.Date, r.Name, r.Email, r.Phone, r.Company, string(r.Source)} {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(v, `"`, `""`))
			b.WriteByte('"')
		}
	}
	return b.String()
}

// ExportFilename names the download after the UTC calendar date.
func ExportFilename(now time.Time) string {
	return "leads_export_" + now.UTC().Format("2006-01-02") + ".csv"
}
