package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// AppointmentRow is one line of the attendance export.
type AppointmentRow struct {
	Badge  string
	Device int
	Serial string
	Date   string
	Time   string
}

const exportSheet = "Relatorio"

// AppointmentsXLSX renders the rows as a spreadsheet, one row per record,
// in the order given. Returns the xlsx file contents.
func AppointmentsXLSX(rows []AppointmentRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	header := []any{"Matricula", "RelogioID", "NumeroSerieRep", "DataFormatada", "HoraFormatada"}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, err
	}
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		values := []any{row.Badge, row.Device, row.Serial, row.Date, row.Time}
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
