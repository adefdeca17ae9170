package output

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/unapproachable/fairgame-fork/internal/probe"
)

var csvHeader = []string{"asin", "seller", "price", "shipping", "total", "currency", "condition", "offer_id", "verdict"}

// WriteCSV writes one row per offer. Missing prices are left empty.
func WriteCSV(w io.Writer, r *probe.Report) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	v := View(r)
	for _, o := range v.Offers {
		row := []string{
			v.ASIN,
			o.Seller,
			optional(o.Price),
			strconv.FormatFloat(o.Shipping, 'f', 2, 64),
			optional(o.Total),
			o.Currency,
			o.Condition,
			o.OfferID,
			o.Verdict,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
