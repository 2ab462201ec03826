// Package export writes support requests out as a spreadsheet, a PDF report
// and downloaded evidence files.
package export

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/victimvoice/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName              = "Support Requests"
	DefaultSpreadsheetName = "SupportRequests.xlsx"
)

// Columns is the fixed header row of the spreadsheet.
var Columns = []string{"Phone", "Request ID", "User ID", "Type", "Priority", "Status", "Date"}

// DateOptions control how dates are rendered.
type DateOptions struct {
	// Layout is a Go time layout; empty means 1/2/2006.
	Layout string
	// Location defaults to the local time zone.
	Location *time.Location
}

func (o DateOptions) Format(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	layout := o.Layout
	if layout == "" {
		layout = "1/2/2006"
	}
	loc := o.Location
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(layout)
}

// Row returns the spreadsheet cells for one request, in Columns order.
func Row(r models.SupportRequest, opts DateOptions) []string {
	return []string{
		r.Phone,
		r.Identifier(),
		r.UserID,
		string(r.HarassmentType),
		string(r.SeverityLevel),
		string(r.Status),
		opts.Format(r.CreatedAt),
	}
}

// WriteSpreadsheet writes one header row and one row per request to w as xlsx.
func WriteSpreadsheet(w io.Writer, reqs []models.SupportRequest, opts DateOptions) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close workbook")
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := setRow(f, 1, Columns); err != nil {
		return err
	}
	for i, r := range reqs {
		if err := setRow(f, i+2, Row(r, opts)); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write spreadsheet: %w", err)
	}

	log.Debug().Int("rows", len(reqs)).Msg("spreadsheet written")
	return nil
}

// SaveSpreadsheet writes the spreadsheet to path.
func SaveSpreadsheet(path string, reqs []models.SupportRequest, opts DateOptions) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteSpreadsheet(w, reqs, opts)
	})
}

func setRow(f *excelize.File, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("invalid row %d: %w", row, err)
	}

	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}

	if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
		return fmt.Errorf("failed to set row %d: %w", row, err)
	}
	return nil
}

// writeFile writes to a temp file next to path and renames it into place.
func writeFile(path string, write func(w io.Writer) error) error {
	tmp := path + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := write(out); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}

	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}
