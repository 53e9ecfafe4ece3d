package admin

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/phpdave11/gofpdf"
	"github.com/skip2/go-qrcode"

	"food-whatsapp/models"
)

// pdfMoney spells currencies the core PDF fonts cannot draw.
func pdfMoney(currency string, amount int64) string {
	switch currency {
	case "₹":
		currency = "Rs. "
	case "€":
		currency = "EUR "
	}
	return fmt.Sprintf("%s%d", currency, amount)
}

// renderReceipt lays out an A4 receipt with a QR code carrying the order id.
func renderReceipt(o *models.Order, shopName, currency string) ([]byte, error) {
	qrPNG, err := qrcode.Encode(o.ID, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("order qr: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, tr(shopName))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	header := []string{
		"Order: #" + o.ShortID(),
		"Date: " + o.CreatedAt.Format("02 Jan 2006 15:04"),
		"Customer: " + strings.TrimSpace(o.CustomerName+" "+o.CustomerPhone),
		"Address: " + o.DeliveryAddress,
		"Status: " + o.Status,
		"Payment: " + strings.ToUpper(o.PaymentMethod) + " (" + o.PaymentStatus + ")",
	}
	for _, line := range header {
		pdf.Cell(0, 7, tr(line))
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(100, 8, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(20, 8, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Price", "B", 0, "R", false, 0, "")
	pdf.CellFormat(30, 8, "Total", "B", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	for _, it := range o.Items {
		pdf.CellFormat(100, 7, tr(it.Name), "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, fmt.Sprintf("%d", it.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, pdfMoney(currency, it.Price), "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, pdfMoney(currency, it.LineTotal()), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	totals := []struct {
		label  string
		amount int64
	}{
		{"Subtotal", o.Subtotal},
		{"Delivery", o.DeliveryFee},
		{"Total", o.Total},
	}
	for i, t := range totals {
		if i == len(totals)-1 {
			pdf.SetFont("Arial", "B", 12)
		}
		pdf.CellFormat(150, 7, t.label, "", 0, "R", false, 0, "")
		pdf.CellFormat(30, 7, pdfMoney(currency, t.amount), "", 1, "R", false, 0, "")
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", opts, bytes.NewReader(qrPNG))
	pdf.ImageOptions("qr", 160, 15, 35, 35, false, opts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render receipt: %w", err)
	}
	return buf.Bytes(), nil
}

// chatLink is the click-to-chat URL customers scan to open a conversation with the shop.
func chatLink(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	return "https://wa.me/" + digits + "?text=hi"
}

func chatQR(phone string) ([]byte, error) {
	return qrcode.Encode(chatLink(phone), qrcode.Medium, 256)
}
