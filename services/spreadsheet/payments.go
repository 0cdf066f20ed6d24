// Package spreadsheet exports admin listings as xlsx workbooks.
package spreadsheet

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/learnearn/hub/core/earn"
)

const (
	PaymentsSheet = "Payments"
	ContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var paymentsHeader = []interface{}{"User", "Email", "Amount", "Date", "Status"}

// WritePayments writes payments as a one-sheet workbook, one row per payment, in the given order.
func WritePayments(w io.Writer, payments []earn.Payment) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", PaymentsSheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}
	if err := f.SetSheetRow(PaymentsSheet, "A1", &paymentsHeader); err != nil {
		return errors.Wrap(err, "writing header")
	}

	for i, p := range payments {
		var email string
		if p.User != nil {
			email = p.User.Email
		}
		row := []interface{}{p.PayeeName(), email, p.Amount.String(), earn.DisplayDate(p.Date), p.DisplayStatus()}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "computing cell")
		}
		if err := f.SetSheetRow(PaymentsSheet, cell, &row); err != nil {
			return errors.Wrapf(err, "writing payment %s", p.ID)
		}
	}

	_, err := f.WriteTo(w)
	return errors.Wrap(err, "writing workbook")
}

// ReadPayments reads the rows back from a workbook written by WritePayments, header excluded.
func ReadPayments(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer f.Close()

	rows, err := f.GetRows(PaymentsSheet)
	if err != nil {
		return nil, errors.Wrap(err, "reading rows")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[1:], nil
}
