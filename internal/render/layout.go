package render

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"seva-invoicing/internal/core"
	"seva-invoicing/internal/format"
)

const (
	pageWidth    = 210.0
	pageHeight   = 297.0
	marginX      = 15.0
	marginTop    = 15.0
	marginBottom = 22.0
	contentWidth = pageWidth - 2*marginX

	logoHeight   = 18.0
	headerHeight = 8.0
	lineHeight   = 5.0

	// Printed currency prefix. The core PDF fonts carry no rupee glyph.
	currencySymbol = "Rs. "
)

// Item table column widths; they add up to contentWidth.
var itemColumns = [4]float64{12, 103, 32.5, 32.5}

var terms = []string{
	"Goods once sold will not be taken back or exchanged.",
	"Warranty on fitted parts is as per the manufacturer's terms.",
	"Payment is due in full on delivery of the vehicle.",
	"All disputes are subject to local jurisdiction.",
}

type layout struct {
	pdf     *fpdf.Fpdf
	tr      func(string) string
	company Company
	inv     *core.Invoice
	logo    *asset
}

func (l *layout) draw() {
	l.pdf.SetFooterFunc(l.footer)
	l.pdf.AddPage()
	l.header()
	l.parties()
	l.vehicle()
	l.items()
	l.closing()
}

func (l *layout) bottom() float64 { return pageHeight - marginBottom }

func (l *layout) font(style string, size float64) {
	l.pdf.SetFont("Helvetica", style, size)
}

func (l *layout) muted() { l.pdf.SetTextColor(110, 110, 110) }
func (l *layout) ink()   { l.pdf.SetTextColor(20, 20, 20) }

// wrap splits translated text into lines no wider than w at the current font.
// Translated text is single-byte, so byte offsets are character offsets.
func (l *layout) wrap(text string, w float64) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		line := ""
		for _, word := range strings.Fields(para) {
			candidate := word
			if line != "" {
				candidate = line + " " + word
			}
			if l.pdf.GetStringWidth(candidate) <= w {
				line = candidate
				continue
			}
			if line != "" {
				lines = append(lines, line)
			}
			for l.pdf.GetStringWidth(word) > w && len(word) > 1 {
				cut := len(word) - 1
				for cut > 1 && l.pdf.GetStringWidth(word[:cut]) > w {
					cut--
				}
				lines = append(lines, word[:cut])
				word = word[cut:]
			}
			line = word
		}
		lines = append(lines, line)
	}
	return lines
}

func (l *layout) header() {
	pdf := l.pdf
	x := marginX
	if l.logo != nil {
		opts := fpdf.ImageOptions{ImageType: l.logo.kind}
		info := pdf.RegisterImageOptionsReader(l.logo.name, opts, bytes.NewReader(l.logo.data))
		if pdf.Ok() && info != nil && info.Height() > 0 {
			w := info.Width() * logoHeight / info.Height()
			pdf.ImageOptions(l.logo.name, marginX, marginTop, w, logoHeight, false, opts, 0, "")
			x += w + 4
		} else {
			pdf.ClearError()
		}
	}

	blockW := contentWidth - (x - marginX) - 62
	pdf.SetXY(x, marginTop)
	l.ink()
	l.font("B", 20)
	pdf.CellFormat(blockW, 9, l.tr(l.company.Name), "", 2, "L", false, 0, "")
	if l.company.Tagline != "" {
		l.font("I", 9)
		l.muted()
		pdf.CellFormat(blockW, 5, l.tr(l.company.Tagline), "", 2, "L", false, 0, "")
	}
	l.font("", 9)
	l.muted()
	for _, line := range []string{l.company.Address, contactLine(l.company)} {
		if line != "" {
			pdf.CellFormat(blockW, 4.5, l.tr(line), "", 2, "L", false, 0, "")
		}
	}
	leftBottom := pdf.GetY()

	rightX := pageWidth - marginX - 60
	pdf.SetXY(rightX, marginTop)
	l.ink()
	l.font("B", 18)
	pdf.CellFormat(60, 9, "INVOICE", "", 2, "R", false, 0, "")
	l.font("", 9)
	l.muted()
	pdf.CellFormat(60, 5, "Invoice No", "", 2, "R", false, 0, "")
	l.ink()
	l.font("B", 11)
	pdf.CellFormat(60, 5, l.tr(l.inv.InvoiceNumber), "", 2, "R", false, 0, "")
	l.font("", 9)
	l.muted()
	pdf.CellFormat(60, 5, "Date Issued", "", 2, "R", false, 0, "")
	l.ink()
	l.font("B", 10)
	pdf.CellFormat(60, 5, displayDate(l.inv.InvoiceDate), "", 2, "R", false, 0, "")

	y := max(leftBottom, pdf.GetY(), marginTop+logoHeight) + 4
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(marginX, y, pageWidth-marginX, y)
	pdf.SetY(y + 5)
}

func contactLine(c Company) string {
	var parts []string
	if c.Phone != "" {
		parts = append(parts, "Ph: "+c.Phone)
	}
	if c.Email != "" {
		parts = append(parts, c.Email)
	}
	return strings.Join(parts, "  |  ")
}

// block draws a labelled column and returns the y below it.
func (l *layout) block(x, y, w float64, label string, lines []string, boldFirst bool) float64 {
	pdf := l.pdf
	pdf.SetXY(x, y)
	l.font("B", 8)
	l.muted()
	pdf.CellFormat(w, 5, label, "", 2, "L", false, 0, "")
	l.ink()
	for i, text := range lines {
		if i == 0 && boldFirst {
			l.font("B", 11)
		} else {
			l.font("", 9.5)
		}
		for _, line := range l.wrap(l.tr(text), w) {
			pdf.CellFormat(w, lineHeight, line, "", 2, "L", false, 0, "")
		}
	}
	return pdf.GetY()
}

func (l *layout) parties() {
	inv := l.inv
	y := l.pdf.GetY()
	colW := (contentWidth - 6) / 2

	var left []string
	left = append(left, inv.CustomerName)
	if inv.CustomerPhone != "" {
		left = append(left, "Ph: "+inv.CustomerPhone)
	}
	if inv.CustomerAddress != "" {
		left = append(left, inv.CustomerAddress)
	}

	billing := inv.BillingAddress
	if billing == "" {
		billing = inv.CustomerAddress
	}
	if billing == "" {
		billing = "-"
	}

	leftBottom := l.block(marginX, y, colW, "BILL TO", left, true)
	rightBottom := l.block(marginX+colW+6, y, colW, "BILLING ADDRESS", []string{billing}, false)
	l.pdf.SetY(max(leftBottom, rightBottom) + 5)
}

func (l *layout) sectionTitle(title string) {
	pdf := l.pdf
	pdf.SetFillColor(240, 240, 240)
	l.ink()
	l.font("B", 9)
	pdf.SetX(marginX)
	pdf.CellFormat(contentWidth, 7, " "+title, "", 1, "L", true, 0, "")
}

func (l *layout) vehicle() {
	pdf := l.pdf
	inv := l.inv
	l.sectionTitle("VEHICLE SPECIFICATIONS")

	fields := [4][2]string{
		{"Model", inv.CarModel},
		{"Reg. No", inv.RegNo},
		{"Engine Number", inv.EngineNumber},
		{"Chassis Number", inv.ChassisNumber},
	}
	colW := contentWidth / 4
	y := pdf.GetY() + 2
	for i, f := range fields {
		value := f[1]
		if value == "" {
			value = "-"
		}
		pdf.SetXY(marginX+float64(i)*colW, y)
		l.font("", 8)
		l.muted()
		pdf.CellFormat(colW, 4.5, f[0], "", 2, "L", false, 0, "")
		l.ink()
		l.font("B", 10)
		pdf.CellFormat(colW, 5.5, l.tr(format.Upper(value)), "", 2, "L", false, 0, "")
	}
	pdf.SetY(y + 14)
}

func (l *layout) tableHeader() {
	pdf := l.pdf
	pdf.SetFillColor(33, 37, 41)
	pdf.SetTextColor(255, 255, 255)
	l.font("B", 9)
	pdf.SetX(marginX)
	labels := [4]string{"#", "DESCRIPTION", "RATE", "AMOUNT"}
	aligns := [4]string{"C", "L", "R", "R"}
	for i, label := range labels {
		if i == 1 {
			label = " " + label
		}
		pdf.CellFormat(itemColumns[i], headerHeight, label, "", 0, aligns[i], true, 0, "")
	}
	pdf.Ln(headerHeight)
	l.ink()
}

// items draws one row per line item. Rows never split; a row that does not
// fit starts a new page and the column header is repeated there.
func (l *layout) items() {
	pdf := l.pdf
	l.tableHeader()
	tableTop := pdf.GetY()
	descW := itemColumns[1] - 4

	for i, it := range l.inv.Items {
		l.font("", 9.5)
		lines := l.wrap(l.tr(format.Upper(it.Description)), descW)
		h := float64(len(lines))*lineHeight + 3

		y := pdf.GetY()
		if y+h > l.bottom() && y > tableTop {
			pdf.AddPage()
			l.tableHeader()
			tableTop = pdf.GetY()
			y = tableTop
			l.font("", 9.5)
		}

		if i%2 == 1 {
			pdf.SetFillColor(248, 248, 248)
			pdf.Rect(marginX, y, contentWidth, h, "F")
		}

		x := marginX
		pdf.SetXY(x, y)
		pdf.CellFormat(itemColumns[0], h, fmt.Sprintf("%02d", i+1), "", 0, "C", false, 0, "")
		x += itemColumns[0]
		for j, line := range lines {
			pdf.SetXY(x+2, y+1.5+float64(j)*lineHeight)
			pdf.CellFormat(descW, lineHeight, line, "", 0, "L", false, 0, "")
		}
		x += itemColumns[1]
		pdf.SetXY(x, y)
		pdf.CellFormat(itemColumns[2], h, format.Amount(it.SellingPrice), "", 0, "R", false, 0, "")
		x += itemColumns[2]
		pdf.CellFormat(itemColumns[3], h, format.Amount(it.Amount), "", 0, "R", false, 0, "")

		pdf.SetDrawColor(225, 225, 225)
		pdf.Line(marginX, y+h, pageWidth-marginX, y+h)
		pdf.SetY(y + h)
	}
}

// closing draws totals, notes, terms and the signature as one group that
// moves to a fresh page when it does not fit below the table.
func (l *layout) closing() {
	pdf := l.pdf

	l.font("", 9)
	var noteLines []string
	if l.inv.Notes != "" {
		noteLines = l.wrap(l.tr(l.inv.Notes), contentWidth)
	}
	l.font("", 8.5)
	var termLines []string
	for i, t := range terms {
		termLines = append(termLines, l.wrap(fmt.Sprintf("%d. %s", i+1, t), contentWidth)...)
	}

	height := 4.0 + 2*7 + 10
	if len(noteLines) > 0 {
		height += 7 + float64(len(noteLines))*4.5 + 3
	}
	height += 7 + float64(len(termLines))*4 + 3
	height += 26

	if pdf.GetY()+height > l.bottom() {
		pdf.AddPage()
	}

	total := l.inv.TotalAmount
	labelW, valueW := 45.0, 45.0
	x := pageWidth - marginX - labelW - valueW

	pdf.SetY(pdf.GetY() + 4)
	pdf.SetX(x)
	l.font("", 10)
	l.muted()
	pdf.CellFormat(labelW, 7, "Subtotal", "", 0, "L", false, 0, "")
	l.ink()
	pdf.CellFormat(valueW, 7, format.CurrencyWithSymbol(core.SumItems(l.inv.Items), currencySymbol), "", 1, "R", false, 0, "")

	pdf.SetX(x)
	pdf.SetFillColor(33, 37, 41)
	pdf.SetTextColor(255, 255, 255)
	l.font("B", 11)
	pdf.CellFormat(labelW, 7, " Total Amount", "", 0, "L", true, 0, "")
	pdf.CellFormat(valueW, 7, format.CurrencyWithSymbol(total, currencySymbol)+" ", "", 1, "R", true, 0, "")
	l.ink()

	pdf.SetX(marginX)
	l.font("I", 9.5)
	pdf.CellFormat(contentWidth, 10, format.AmountInWords(total), "", 1, "R", false, 0, "")

	if len(noteLines) > 0 {
		l.font("B", 9)
		pdf.CellFormat(contentWidth, 7, "NOTES", "", 1, "L", false, 0, "")
		l.font("", 9)
		for _, line := range noteLines {
			pdf.CellFormat(contentWidth, 4.5, line, "", 1, "L", false, 0, "")
		}
		pdf.Ln(3)
	}

	l.font("B", 9)
	pdf.CellFormat(contentWidth, 7, "TERMS & CONDITIONS", "", 1, "L", false, 0, "")
	l.font("", 8.5)
	l.muted()
	for _, line := range termLines {
		pdf.CellFormat(contentWidth, 4, line, "", 1, "L", false, 0, "")
	}
	l.ink()
	pdf.Ln(3)

	l.signature()
}

func (l *layout) signature() {
	pdf := l.pdf
	y := pdf.GetY() + 14
	sigW := 65.0
	sigX := pageWidth - marginX - sigW

	pdf.SetXY(marginX, y)
	l.font("I", 9)
	l.muted()
	pdf.CellFormat(contentWidth-sigW, 6, l.tr("Thank you for choosing "+l.company.Name+"."), "", 0, "L", false, 0, "")

	pdf.SetDrawColor(60, 60, 60)
	pdf.Line(sigX, y, sigX+sigW, y)
	pdf.SetXY(sigX, y+1)
	l.ink()
	l.font("B", 9)
	pdf.CellFormat(sigW, 6, "Authorized Dealer Signature", "", 1, "C", false, 0, "")
}

func (l *layout) footer() {
	pdf := l.pdf
	y := pageHeight - 15
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(marginX, y, pageWidth-marginX, y)
	pdf.SetXY(marginX, y+1)
	l.font("I", 8)
	l.muted()
	pdf.CellFormat(contentWidth/2, 6, "Computer Generated Record", "", 0, "L", false, 0, "")
	pdf.CellFormat(contentWidth/2, 6, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "R", false, 0, "")
}

// displayDate prints YYYY-MM-DD as "15 Jun 2025"; other values pass through.
func displayDate(s string) string {
	if len(s) > len(core.DateLayout) {
		s = s[:len(core.DateLayout)]
	}
	d, err := time.Parse(core.DateLayout, s)
	if err != nil {
		return s
	}
	return d.Format("02 Jan 2006")
}
