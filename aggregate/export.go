package aggregate

// This file contains the CSV export of the canonical result set.

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/perfgo/vrtgo/model"
)

// CSVFile is the file name of the CSV export.
const CSVFile = "test-results.csv"

var csvHeader = []string{
	"Test ID",
	"Test Name",
	"Device",
	"Browser",
	"Viewport",
	"Similarity (%)",
	"Calculated Similarity (%)",
	"Baseline Status",
	"Comparison Status",
	"Baseline URL",
	"Comparison URL",
	"Test Date",
}

// WriteCSV writes one row per result.
func WriteCSV(w io.Writer, set *model.ResultSet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	date := set.TestDate.Format(time.RFC3339)
	for _, r := range set.Results {
		row := []string{
			set.TestID,
			r.TestName,
			r.Device,
			r.Browser,
			r.Viewport,
			strconv.Itoa(r.Similarity),
			strconv.Itoa(r.CalculatedSimilarity),
			strconv.Itoa(r.BaselineStatus),
			strconv.Itoa(r.ComparisonStatus),
			r.BaselineURL,
			r.ComparisonURL,
			date,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Summary buckets results by similarity.
type Summary struct {
	Total   int
	High    int // Similarity >= high threshold
	Medium  int // Similarity >= medium threshold
	Low     int
	Errored int // Results carrying an error annotation
	Average float64
}

// Summarize computes a Summary with the given thresholds.
func Summarize(set *model.ResultSet, high, medium int) Summary {
	s := Summary{Total: len(set.Results)}
	sum := 0
	for _, r := range set.Results {
		sum += r.Similarity
		switch {
		case r.Similarity >= high:
			s.High++
		case r.Similarity >= medium:
			s.Medium++
		default:
			s.Low++
		}
		if r.Error != "" {
			s.Errored++
		}
	}
	if s.Total > 0 {
		s.Average = float64(sum) / float64(s.Total)
	}
	return s
}
