// Package export renders one assessment to an Excel workbook for sharing
// raw scores outside the app. Report/PDF rendering is a separate system;
// this is only the tabular dump.
package export

import (
	"bytes"
	"fmt"

	"cpted-sync/internal/domain"
	"cpted-sync/internal/scoring"

	"github.com/xuri/excelize/v2"
)

var summaryHeader = []string{"Zone", "Average Score", "Completed", "Items", "Scored", "N/A", "Remaining"}

var itemsHeader = []string{"Zone", "Principle", "#", "Item", "Score", "N/A", "Notes"}

// Workbook builds an .xlsx with a summary sheet (per-zone rollups and the
// overall score) and an items sheet (every raw item row).
func Workbook(d *domain.AssessmentDetail) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	a := d.Assessment
	meta := [][]any{
		{"Property", a.PropertyName},
		{"Address", a.PropertyAddress},
		{"Assessor", a.AssessorName},
		{"Date", a.AssessmentDate.Format("2006-01-02")},
		{"Status", a.Status},
		{"Overall Score", scoreCell(a.OverallScore)},
	}
	for i, row := range meta {
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &row); err != nil {
			return nil, fmt.Errorf("failed to write metadata row: %w", err)
		}
	}

	headerRow := len(meta) + 2
	hdr := make([]any, len(summaryHeader))
	for i, h := range summaryHeader {
		hdr[i] = h
	}
	if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", headerRow), &hdr); err != nil {
		return nil, fmt.Errorf("failed to write summary header: %w", err)
	}

	for i, z := range d.ZoneScores {
		counts := scoring.CountsFor(scoring.FilterZone(d.ItemScores, z.ZoneKey))
		row := []any{
			z.ZoneName,
			scoreCell(z.AverageScore),
			z.Completed,
			counts.Total,
			counts.Scored,
			counts.NA,
			counts.Remaining,
		}
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", headerRow+1+i), &row); err != nil {
			return nil, fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	const itemsSheet = "Items"
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, fmt.Errorf("failed to create items sheet: %w", err)
	}
	hdr = make([]any, len(itemsHeader))
	for i, h := range itemsHeader {
		hdr[i] = h
	}
	if err := f.SetSheetRow(itemsSheet, "A1", &hdr); err != nil {
		return nil, fmt.Errorf("failed to write items header: %w", err)
	}
	for i, it := range d.ItemScores {
		row := []any{
			it.ZoneKey,
			it.PrincipleKey,
			it.SortOrder + 1,
			it.ItemText,
			intCell(it.Score),
			it.IsNA,
			it.Notes,
		}
		if err := f.SetSheetRow(itemsSheet, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return nil, fmt.Errorf("failed to write item row: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func scoreCell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func intCell(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}
