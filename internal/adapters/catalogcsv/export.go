package catalogcsv

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"unicode"

	"stayfinder/internal/domain"
)

var exportHeader = []string{
	"rank", "property_id", "location", "environment", "property_type", "nightly_price",
	"min_guests", "max_guests", "features", "tags", "fit_score",
}

// Export writes the items of a run as CSV, best first.
func Export(w io.Writer, run domain.RecommendationRun) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for i, it := range run.Items {
		p := it.Property
		if err := cw.Write([]string{
			strconv.Itoa(i + 1),
			p.ID,
			p.Location,
			p.Environment,
			p.PropertyType,
			strconv.FormatFloat(p.NightlyPrice, 'f', 2, 64),
			strconv.Itoa(p.MinGuests),
			strconv.Itoa(p.MaxGuests),
			p.Features,
			p.Tags,
			strconv.FormatFloat(it.FitScore, 'f', 4, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SafeFilename keeps letters, digits, '-' and '_' and replaces the rest
// with '_', trimming underscores at both ends.
func SafeFilename(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, strings.TrimSpace(s))
	return strings.Trim(s, "_")
}

// ExportFilename is the download name for a user's latest run.
func ExportFilename(username string) string {
	name := SafeFilename(username)
	if name == "" {
		name = "guest"
	}
	return "recommendations_" + name + ".csv"
}
