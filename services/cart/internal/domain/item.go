package domain

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// keySeparator joins the parts of a key in its wire form.
const keySeparator = "|||"

// ErrMalformedKey is returned when an encoded line item key cannot be parsed.
var ErrMalformedKey = errors.New("malformed line item key")

// LineItem is a single canonical cart line as persisted in the cart slot.
type LineItem struct {
	Name     string  `json:"name"`
	Size     string  `json:"size"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// Key returns the identity key of the line item.
func (li LineItem) Key() Key {
	return Key{Name: li.Name, Size: li.Size, Price: li.Price}
}

// Subtotal returns price times quantity, computed exactly on the decimal
// value of the price.
func (li LineItem) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(li.Price).Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Key identifies a logical cart line. Two items with equal keys are merged.
type Key struct {
	Name  string
	Size  string
	Price float64
}

// String renders the key as name|||size|||price with the price in its
// shortest decimal form.
func (k Key) String() string {
	return k.Name + keySeparator + k.Size + keySeparator + strconv.FormatFloat(k.Price, 'f', -1, 64)
}

// Encode returns the key escaped for use as a single URL path segment.
func (k Key) Encode() string {
	return url.PathEscape(k.String())
}

// ParseKey parses the unescaped name|||size|||price form of a key.
func ParseKey(s string) (Key, error) {
	parts := strings.Split(s, keySeparator)
	if len(parts) != 3 {
		return Key{}, ErrMalformedKey
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return Key{}, ErrMalformedKey
	}
	return Key{Name: parts[0], Size: parts[1], Price: price}, nil
}

// DecodeKey reverses Encode.
func DecodeKey(encoded string) (Key, error) {
	s, err := url.PathUnescape(encoded)
	if err != nil {
		return Key{}, ErrMalformedKey
	}
	return ParseKey(s)
}

// Items is an ordered list of canonical line items.
type Items []LineItem

// Count returns the sum of quantities.
func (items Items) Count() int {
	var count int
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

// Total returns the sum of the line subtotals.
func (items Items) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// Index returns the position of the item with the given key, or -1.
func (items Items) Index(key Key) int {
	for i := range items {
		if items[i].Key() == key {
			return i
		}
	}
	return -1
}
