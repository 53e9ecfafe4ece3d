package services

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"food-whatsapp/models"
)

var orderLinePattern = regexp.MustCompile(`(?i)([a-z0-9 ]+?)\s*x\s*(\d+)`)

// MaxLineQuantity bounds one order line so price × quantity stays far from int64 overflow.
const MaxLineQuantity = 1000

// Candidate is one "name x qty" occurrence found in a message.
type Candidate struct {
	RawName  string
	Quantity int
}

// ParseOrderText extracts "<name> x <qty>" pairs left to right. Occurrences of the same
// name are kept as separate candidates. Quantities outside 1..MaxLineQuantity are dropped.
func ParseOrderText(text string) []Candidate {
	var out []Candidate
	for _, m := range orderLinePattern.FindAllStringSubmatch(text, -1) {
		name := strings.Join(strings.Fields(m[1]), " ")
		if name == "" {
			continue
		}
		qty, err := strconv.Atoi(m[2])
		if err != nil || qty < 1 || qty > MaxLineQuantity {
			continue
		}
		out = append(out, Candidate{RawName: name, Quantity: qty})
	}
	return out
}

// IntakeResult splits candidates into priced lines and names the catalog did not know.
type IntakeResult struct {
	Lines      []models.OrderItem
	Unresolved []string
}

// Subtotal is the sum of price × quantity over the resolved lines.
func (r IntakeResult) Subtotal() int64 {
	var s int64
	for _, l := range r.Lines {
		s += l.LineTotal()
	}
	return s
}

// ResolveCandidates looks every candidate up in the catalog, snapshotting name and price.
func ResolveCandidates(ctx context.Context, catalog *MenuCatalog, candidates []Candidate) (IntakeResult, error) {
	var res IntakeResult
	for _, c := range candidates {
		item, err := catalog.FindAvailableByName(ctx, c.RawName)
		if errors.Is(err, models.ErrNotFound) {
			res.Unresolved = append(res.Unresolved, c.RawName)
			continue
		}
		if err != nil {
			return IntakeResult{}, err
		}
		res.Lines = append(res.Lines, models.OrderItem{
			ItemRef:  item.ID,
			Name:     item.Name,
			Quantity: c.Quantity,
			Price:    item.Price,
		})
	}
	return res, nil
}
