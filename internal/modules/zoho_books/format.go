package zoho_books

import (
	"net/http"

	"github.com/go-faster/jx"

	"zohobooks-mcp/server/internal/apperrors"
)

// CustomerName is one entry of zoho_list_customer_names.
type CustomerName struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
}

// projectCustomerNames reduces a contacts page to id/name pairs in upstream order.
// A page without contacts yields an empty list.
func projectCustomerNames(raw jx.Raw) ([]CustomerName, error) {
	out := []CustomerName{}
	d := jx.DecodeBytes(raw)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "contacts" || d.Next() != jx.Array {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var c CustomerName
			if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				switch string(key) {
				case "contact_id":
					return decodeID(d, &c.CustomerID)
				case "contact_name":
					if d.Next() != jx.String {
						return d.Skip()
					}
					v, err := d.Str()
					c.CustomerName = v
					return err
				default:
					return d.Skip()
				}
			}); err != nil {
				return err
			}
			out = append(out, c)
			return nil
		})
	})
	if err != nil {
		return nil, &apperrors.UpstreamError{Status: http.StatusOK, Message: "malformed contacts list: " + err.Error()}
	}
	return out, nil
}

// decodeID accepts ids sent either as strings or as bare numbers.
func decodeID(d *jx.Decoder, dst *string) error {
	switch d.Next() {
	case jx.String:
		v, err := d.Str()
		*dst = v
		return err
	case jx.Number:
		n, err := d.Num()
		*dst = n.String()
		return err
	default:
		return d.Skip()
	}
}
