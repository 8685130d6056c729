package shard

// This file contains conversion of URL pair spreadsheets into record files
// and filtering of record files by id.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/perfgo/vrtgo/model"
)

// Defaults applied to imported records.
const (
	ImportDevice = "desktop"
	ImportWidth  = 1000
	ImportHeight = 800
)

// ImportCSV reads a CSV with "baseline" and "comparison" columns and
// returns records numbered from 1. Leading slashes are stripped from paths
// and rows with an empty path are skipped.
func ImportCSV(r io.Reader) ([]model.URLPair, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []model.URLPair{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	baselineCol, comparisonCol := -1, -1
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		switch name {
		case "baseline":
			baselineCol = i
		case "comparison":
			comparisonCol = i
		}
	}
	if baselineCol < 0 || comparisonCol < 0 {
		return nil, fmt.Errorf("CSV header must contain baseline and comparison columns, got %v", header)
	}

	records := []model.URLPair{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		if baselineCol >= len(row) || comparisonCol >= len(row) {
			continue
		}

		baseline := strings.TrimLeft(strings.TrimSpace(row[baselineCol]), "/")
		comparison := strings.TrimLeft(strings.TrimSpace(row[comparisonCol]), "/")
		if baseline == "" || comparison == "" {
			continue
		}

		records = append(records, model.URLPair{
			ID:         len(records) + 1,
			Baseline:   baseline,
			Comparison: comparison,
			Device:     ImportDevice,
			Width:      ImportWidth,
			Height:     ImportHeight,
		})
	}

	return records, nil
}

// FilterRange returns the records with start <= id <= end.
func FilterRange(records []model.URLPair, start, end int) []model.URLPair {
	out := []model.URLPair{}
	for _, r := range records {
		if r.ID >= start && r.ID <= end {
			out = append(out, r)
		}
	}
	return out
}

// FilterIDs returns the records whose id is in ids, in record order.
func FilterIDs(records []model.URLPair, ids []int) []model.URLPair {
	want := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := []model.URLPair{}
	for _, r := range records {
		if _, ok := want[r.ID]; ok {
			out = append(out, r)
		}
	}
	return out
}
