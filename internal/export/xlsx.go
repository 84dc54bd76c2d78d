package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mr1hm/school-finance/internal/models"
)

const DefaultersSheet = "Defaulters"

var defaulterHeader = []any{"Student No.", "Full Name", "Grade", "Guardian Contact", "Balance"}

// DefaultersXLSX writes the outstanding-balance report as a workbook with one
// row per student and a closing total row.
func DefaultersXLSX(w io.Writer, currency string, students []models.Student, generated time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), DefaultersSheet); err != nil {
		return fmt.Errorf("error naming sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E5E7EB"}},
	})
	if err != nil {
		return fmt.Errorf("error creating header style: %w", err)
	}
	moneyFmt := fmt.Sprintf(`"%s" #,##0.00`, currency)
	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	if err != nil {
		return fmt.Errorf("error creating money style: %w", err)
	}

	if err := f.SetSheetRow(DefaultersSheet, "A1", &defaulterHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(DefaultersSheet, 1, 1, bold); err != nil {
		return err
	}

	var total models.Money
	row := 2
	for _, s := range students {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []any{s.StudentNumber, s.FullName, s.Grade, s.GuardianContact, s.Balance.Float()}
		if err := f.SetSheetRow(DefaultersSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing row %d: %w", row, err)
		}
		total += s.Balance
		row++
	}

	totalCell, _ := excelize.CoordinatesToCellName(4, row)
	if err := f.SetSheetRow(DefaultersSheet, totalCell, &[]any{"Total", total.Float()}); err != nil {
		return err
	}
	if err := f.SetRowStyle(DefaultersSheet, row, row, bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(DefaultersSheet, "E2", fmt.Sprintf("E%d", row), money); err != nil {
		return err
	}

	generatedCell, _ := excelize.CoordinatesToCellName(1, row+2)
	if err := f.SetCellValue(DefaultersSheet, generatedCell, "Generated "+generated.Format("2006-01-02 15:04")); err != nil {
		return err
	}

	if err := f.SetColWidth(DefaultersSheet, "A", "A", 14); err != nil {
		return err
	}
	if err := f.SetColWidth(DefaultersSheet, "B", "B", 32); err != nil {
		return err
	}
	if err := f.SetColWidth(DefaultersSheet, "D", "E", 18); err != nil {
		return err
	}
	err = f.SetPanes(DefaultersSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	if err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}
