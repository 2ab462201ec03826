package export

import (
	_ "embed"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/victimvoice/internal/models"
)

const DefaultReportName = "Support_Request_Report.pdf"

// fontFamily is registered from the embedded UTF-8 fonts below.
const fontFamily = "DejaVu"

var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	fontRegular []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	fontBold []byte
	//go:embed fonts/DejaVuSansCondensed-Oblique.ttf
	fontOblique []byte
)

const (
	reportMargin = 15.0
	lineHeight   = 6.0
	labelWidth   = 45.0
)

// ReportOptions configure the PDF report.
type ReportOptions struct {
	Dates DateOptions
	// GeneratedAt is stamped into the document; zero means now.
	GeneratedAt time.Time
}

// WriteReport renders r as an A4 portrait PDF. Long descriptions and comment
// threads continue onto further pages.
func WriteReport(w io.Writer, r models.SupportRequest, opts ReportOptions) error {
	pdf := buildReport(r, opts)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	log.Debug().Str("id", r.Identifier()).Int("pages", pdf.PageCount()).Msg("report written")
	return nil
}

// SaveReport writes the report to path.
func SaveReport(path string, r models.SupportRequest, opts ReportOptions) error {
	return writeFile(path, func(w io.Writer) error {
		return WriteReport(w, r, opts)
	})
}

func buildReport(r models.SupportRequest, opts ReportOptions) *fpdf.Fpdf {
	generated := opts.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(reportMargin, reportMargin, reportMargin)
	pdf.SetAutoPageBreak(true, reportMargin+5)
	pdf.SetTitle("Support Request Report", true)
	pdf.SetCreator("vvcli", true)
	pdf.SetCreationDate(generated)
	pdf.SetModificationDate(generated)
	pdf.AliasNbPages("")
	pdf.AddUTF8FontFromBytes(fontFamily, "", fontRegular)
	pdf.AddUTF8FontFromBytes(fontFamily, "B", fontBold)
	pdf.AddUTF8FontFromBytes(fontFamily, "I", fontOblique)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-reportMargin)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 18)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, "Support Request Report", "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 9)
	pdf.SetTextColor(100, 100, 100)
	pdf.CellFormat(0, 5, "Generated "+generated.Format(time.RFC1123), "", 1, "L", false, 0, "")
	pdf.Ln(4)

	section(pdf, "Request")
	field(pdf, "Request ID", r.Identifier())
	field(pdf, "Status", r.Status.Label())
	field(pdf, "Type", r.HarassmentType.Label())
	field(pdf, "Severity", string(r.SeverityLevel))
	field(pdf, "Submitted", opts.Dates.Format(r.CreatedAt))
	field(pdf, "Last update", r.LastUpdate())

	section(pdf, "Reporter")
	field(pdf, "User ID", r.UserID)
	field(pdf, "Phone", r.Phone)
	field(pdf, "Address", r.UserAddress)

	section(pdf, "Accused")
	field(pdf, "Name", r.AccusedName)
	field(pdf, "Phone", r.AccusedPhone)
	field(pdf, "Address", r.AccusedAddress)

	section(pdf, "Description")
	body(pdf)
	pdf.MultiCell(0, lineHeight, bmp(orDash(r.Description)), "", "L", false)

	section(pdf, "Evidence")
	if len(r.Evidence) == 0 {
		body(pdf)
		pdf.MultiCell(0, lineHeight, "No evidence attached.", "", "L", false)
	}
	for i, label := range r.EvidenceLabels() {
		field(pdf, label, r.Evidence[i].URL)
	}

	section(pdf, "Comments")
	if len(r.Comments) == 0 {
		body(pdf)
		pdf.MultiCell(0, lineHeight, models.NoUpdates+".", "", "L", false)
	}
	for _, c := range r.Comments {
		heading := string(c.Sender)
		if !c.Timestamp.IsZero() {
			heading += "  " + opts.Dates.Format(c.Timestamp)
		}
		pdf.SetFont(fontFamily, "B", 9)
		pdf.SetTextColor(80, 80, 80)
		pdf.CellFormat(0, lineHeight, bmp(heading), "", 1, "L", false, 0, "")
		body(pdf)
		pdf.MultiCell(0, lineHeight, bmp(c.Content), "", "L", false)
		pdf.Ln(2)
	}

	return pdf
}

func section(pdf *fpdf.Fpdf, title string) {
	pdf.Ln(3)
	pdf.SetFont(fontFamily, "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFillColor(235, 235, 240)
	pdf.CellFormat(0, 8, title, "", 1, "L", true, 0, "")
	pdf.Ln(1)
}

func field(pdf *fpdf.Fpdf, label, value string) {
	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(labelWidth, lineHeight, label, "", 0, "L", false, 0, "")
	body(pdf)
	pdf.MultiCell(0, lineHeight, bmp(orDash(value)), "", "L", false)
}

func body(pdf *fpdf.Fpdf) {
	pdf.SetFont(fontFamily, "", 10)
	pdf.SetTextColor(0, 0, 0)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// bmp replaces runes outside the Basic Multilingual Plane, which the UTF-8
// font tables cannot address.
func bmp(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFFFF {
			return unicode.ReplacementChar
		}
		return r
	}, s)
}
