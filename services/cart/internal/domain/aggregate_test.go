package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Aggregate Tests
// ============================================================================

func TestAggregate_MergesDuplicateKeys(t *testing.T) {
	entries := []*RawEntry{
		{Name: "Blue Dream", Size: "1 oz", Price: 110.0, Quantity: 1.0},
		{Name: "OG Kush", Size: "3.5g", Price: 40.0, Quantity: 2.0},
		{Name: "Blue Dream", Size: "1 oz", Price: "$110", Quantity: "3"},
		{Name: "Blue Dream", SizePrice: "1 oz: $110"},
	}

	items := Aggregate(entries)

	require.Len(t, items, 2)
	assert.Equal(t, "Blue Dream", items[0].Name)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, "OG Kush", items[1].Name)
	assert.Equal(t, 2, items[1].Quantity)
}

func TestAggregate_DifferentPriceIsDifferentLine(t *testing.T) {
	items := Aggregate([]*RawEntry{
		{Name: "Blue Dream", Size: "1 oz", Price: 110.0},
		{Name: "Blue Dream", Size: "1 oz", Price: 100.0},
	})
	assert.Len(t, items, 2)
}

func TestAggregate_Empty(t *testing.T) {
	items := Aggregate(nil)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

// ============================================================================
// Mutation Tests
// ============================================================================

func TestAddItem_SumsQuantities(t *testing.T) {
	var items Items
	for _, qty := range []int{1, 2, 4} {
		items = AddItem(items, LineItem{Name: "Gelato", Size: "1 oz", Price: 95, Quantity: qty})
	}

	require.Len(t, items, 1)
	assert.Equal(t, 7, items[0].Quantity)
}

func TestAddItem_DoesNotModifyInput(t *testing.T) {
	original := Items{{Name: "Gelato", Price: 95, Quantity: 1}}

	updated := AddItem(original, LineItem{Name: "Gelato", Price: 95, Quantity: 2})

	assert.Equal(t, 1, original[0].Quantity)
	assert.Equal(t, 3, updated[0].Quantity)
}

func TestAddItem_AppendsNewKey(t *testing.T) {
	items := Items{{Name: "Gelato", Price: 95, Quantity: 1}}

	items = AddItem(items, LineItem{Name: "Gelato", Size: "half", Price: 50, Quantity: 1})

	require.Len(t, items, 2)
	assert.Equal(t, "half", items[1].Size)
}

func TestRemoveItem(t *testing.T) {
	items := Items{
		{Name: "A", Price: 1, Quantity: 1},
		{Name: "B", Price: 2, Quantity: 1},
	}

	out := RemoveItem(items, Key{Name: "A", Price: 1})
	require.Len(t, out, 1)
	assert.Equal(t, "B", out[0].Name)

	out = RemoveItem(out, Key{Name: "B", Price: 2})
	assert.Empty(t, out)
	assert.Equal(t, 0, out.Count())
	assert.True(t, out.Total().IsZero())
}

func TestSetQuantity(t *testing.T) {
	items := Items{{Name: "A", Price: 1, Quantity: 1}}

	out, ok := SetQuantity(items, Key{Name: "A", Price: 1}, 4.9)
	require.True(t, ok)
	assert.Equal(t, 4, out[0].Quantity)
	assert.Equal(t, 1, items[0].Quantity)

	out, ok = SetQuantity(items, Key{Name: "A", Price: 1}, -2)
	require.True(t, ok)
	assert.Equal(t, 1, out[0].Quantity)
}

func TestSetQuantity_Missing(t *testing.T) {
	items := Items{{Name: "A", Price: 1, Quantity: 1}}

	out, ok := SetQuantity(items, Key{Name: "missing", Price: 1}, 3)
	assert.False(t, ok)
	assert.Equal(t, items, out)
}

// ============================================================================
// Count / Total Tests
// ============================================================================

func TestItems_CountAndTotal(t *testing.T) {
	items := Items{
		{Name: "A", Price: 10, Quantity: 2},
		{Name: "B", Price: 2.5, Quantity: 3},
		{Name: "C", Price: 0, Quantity: 1},
	}

	assert.Equal(t, 6, items.Count())
	assert.Equal(t, "27.50", items.Total().StringFixed(2))
}

func TestItems_TotalIsExact(t *testing.T) {
	items := Items{{Name: "A", Price: 0.1, Quantity: 3}}

	assert.True(t, decimal.RequireFromString("0.3").Equal(items[0].Subtotal()))
	assert.Equal(t, "0.30", items.Total().StringFixed(2))
}

// ============================================================================
// Key Tests
// ============================================================================

func TestKey_String(t *testing.T) {
	assert.Equal(t, "Blue Dream|||1 oz|||110", Key{Name: "Blue Dream", Size: "1 oz", Price: 110}.String())
	assert.Equal(t, "A||||||12.5", Key{Name: "A", Price: 12.5}.String())
}

func TestKey_EncodeDecode(t *testing.T) {
	key := Key{Name: "Blue Dream / Indica", Size: "1 oz", Price: 110}

	decoded, err := DecodeKey(key.Encode())
	require.NoError(t, err)
	assert.Equal(t, key, decoded)
}

func TestParseKey_Malformed(t *testing.T) {
	for _, s := range []string{"", "A|||B", "A|||B|||C|||D", "A|||B|||cheap"} {
		_, err := ParseKey(s)
		assert.ErrorIs(t, err, ErrMalformedKey, s)
	}

	_, err := DecodeKey("%zz")
	assert.ErrorIs(t, err, ErrMalformedKey)
}
