// Package report renders the daily agenda as a spreadsheet.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jvstudio/salonbook/services/booking-service/internal/clock"
	"github.com/jvstudio/salonbook/services/booking-service/internal/model"
)

// ContentType is the media type of the workbook WriteAgenda produces.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var agendaColumns = []string{"Start", "End", "Staff", "Service", "Client", "Phone", "Status", "Price"}

// WriteAgenda writes one sheet named after day with a row per entry. Times
// are rendered in loc.
func WriteAgenda(w io.Writer, day time.Time, entries []model.AgendaEntry, loc *time.Location) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := "Agenda " + clock.FormatDate(day.In(loc))
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, col := range agendaColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(agendaColumns), 1)
		_ = f.SetCellStyle(sheet, "A1", last, style)
	}

	for r, e := range entries {
		row := []any{
			clock.FormatSlot(e.Start, loc),
			clock.FormatSlot(e.End, loc),
			e.StaffName,
			e.ServiceName,
			e.ClientName,
			e.ClientPhone,
			string(e.Status),
			e.PriceCharged,
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", r+2, err)
		}
	}
	_ = f.SetColWidth(sheet, "A", "B", 10)
	_ = f.SetColWidth(sheet, "C", "F", 22)

	return f.Write(w)
}
