package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// PlaceholderName is used for raw entries that carry no usable name.
const PlaceholderName = "Item"

// MaxQuantity caps a single line's quantity so it always fits an int32.
const MaxQuantity = math.MaxInt32

var priceRE = regexp.MustCompile(`\d+(\.\d+)?`)

// RawEntry is a possibly non-canonical record as found in the cart slot.
// Every field is optional and loosely typed: older pages stored the product
// name under different keys and kept size and price in one "1 oz: $110"
// string.
type RawEntry struct {
	Name        any `json:"name,omitempty"`
	Product     any `json:"product,omitempty"`
	ProductName any `json:"productName,omitempty"`
	Size        any `json:"size,omitempty"`
	SizePrice   any `json:"sizePrice,omitempty"`
	Price       any `json:"price,omitempty"`
	Quantity    any `json:"quantity,omitempty"`
}

// ParsePrice extracts a price from a number or price-like string. Numbers are
// returned unchanged. Strings have thousands separators removed and yield the
// first decimal or integer of their price portion, so "$1,100", "1 oz: $110"
// and "110" all parse. Anything without digits is 0.
func ParsePrice(v any) float64 {
	var s string
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case int:
		return float64(t)
	case json.Number:
		s = t.String()
	case string:
		s = t
	case bool:
		if !t {
			return 0
		}
		s = "true"
	default:
		s = fmt.Sprint(t)
	}
	if s == "" {
		return 0
	}

	s = strings.ReplaceAll(s, ",", "")
	m := priceRE.FindString(pricePortion(s))
	if m == "" {
		m = priceRE.FindString(s)
	}
	if m == "" {
		return 0
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return f
}

// pricePortion narrows a combined "label: $price" string to the part that
// holds the price: what follows the currency sign, else what follows the
// first colon. Without a currency sign the label may hold digits of its own
// ("1 oz", "3.5g") that must not be mistaken for the price.
func pricePortion(s string) string {
	if _, after, ok := strings.Cut(s, "$"); ok {
		return after
	}
	if _, after, ok := strings.Cut(s, ":"); ok {
		return after
	}
	return s
}

// Price coerces a loosely typed price into a valid unit price (>= 0).
func Price(v any) float64 {
	return clampPrice(ParsePrice(v))
}

// Quantity coerces a loosely typed quantity into a valid line quantity.
func Quantity(v any) int {
	return CoerceQuantity(looseNumber(v))
}

// CoerceQuantity floors f and clamps it into [1, MaxQuantity]. NaN and
// infinities become 1.
func CoerceQuantity(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 1
	}
	f = math.Floor(f)
	if f < 1 {
		return 1
	}
	if f > MaxQuantity {
		return MaxQuantity
	}
	return int(f)
}

func clampPrice(p float64) float64 {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return 0
	}
	return p
}

// Normalize resolves a raw entry into a canonical line item. A nil entry
// becomes a single placeholder item priced at 0. An explicit price always
// wins over one embedded in sizePrice, even when the two disagree.
func Normalize(r *RawEntry) LineItem {
	if r == nil {
		return LineItem{Name: PlaceholderName, Quantity: 1}
	}

	name := firstNonEmpty(looseString(r.Name), looseString(r.Product), looseString(r.ProductName))
	if name == "" {
		name = PlaceholderName
	}

	size := looseString(r.Size)
	sizePrice := looseString(r.SizePrice)
	if size == "" && sizePrice != "" {
		if label, _, ok := strings.Cut(sizePrice, ":"); ok {
			size = strings.TrimSpace(label)
		}
	}

	var price float64
	switch {
	case r.Price != nil && r.Price != "":
		price = ParsePrice(r.Price)
	case sizePrice != "":
		price = ParsePrice(r.SizePrice)
	}

	return LineItem{
		Name:     name,
		Size:     size,
		Price:    clampPrice(price),
		Quantity: Quantity(r.Quantity),
	}
}

// DecodeRaw parses the slot document. Empty input is an empty cart. The
// second result is false when the document is not a JSON array, in which
// case the cart is treated as empty. Null and falsy scalar elements (0, "",
// false) decode as nil entries, which normalize to the placeholder item.
// Truthy scalars and nested arrays are dropped.
func DecodeRaw(data []byte) ([]*RawEntry, bool) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, true
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, false
	}

	entries := make([]*RawEntry, 0, len(elems))
	for _, elem := range elems {
		var entry *RawEntry
		if err := json.Unmarshal(elem, &entry); err != nil {
			if !isFalsyScalar(elem) {
				continue
			}
			entry = nil
		}
		entries = append(entries, entry)
	}
	return entries, true
}

func isFalsyScalar(elem json.RawMessage) bool {
	var v any
	if err := json.Unmarshal(elem, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return t == ""
	case float64:
		return t == 0
	case bool:
		return !t
	}
	return false
}

// Load decodes and aggregates a slot document into its canonical view.
func Load(data []byte) (Items, bool) {
	entries, ok := DecodeRaw(data)
	return Aggregate(entries), ok
}

// looseString returns the string form of a truthy scalar, or "" for falsy
// values (empty string, zero, false, null) and non-scalars.
func looseString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == 0 || math.IsNaN(t) {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
	}
	return ""
}

// looseNumber converts a scalar to a float the way a form field would be
// read: blank and null are 0, booleans are 0 or 1, unparsable text is NaN.
func looseNumber(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case int:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
