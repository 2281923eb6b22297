package domain

// Aggregate normalizes every raw entry and merges entries sharing an identity
// key by summing their quantities. Distinct keys keep first-seen order.
func Aggregate(entries []*RawEntry) Items {
	items := make(Items, 0, len(entries))
	index := make(map[Key]int, len(entries))
	for _, entry := range entries {
		item := Normalize(entry)
		key := item.Key()
		if i, ok := index[key]; ok {
			items[i].Quantity = addQuantity(items[i].Quantity, item.Quantity)
			continue
		}
		index[key] = len(items)
		items = append(items, item)
	}
	return items
}

// AddItem merges item into items, incrementing the quantity of an existing
// line with the same key or appending a new one. The input slice is not
// modified.
func AddItem(items Items, item LineItem) Items {
	out := clone(items)
	if i := out.Index(item.Key()); i >= 0 {
		out[i].Quantity = addQuantity(out[i].Quantity, item.Quantity)
		return out
	}
	return append(out, item)
}

// RemoveItem returns items without the line matching key.
func RemoveItem(items Items, key Key) Items {
	out := make(Items, 0, len(items))
	for _, item := range items {
		if item.Key() != key {
			out = append(out, item)
		}
	}
	return out
}

// SetQuantity sets the quantity of the line matching key. The second result
// is false, and items are returned unchanged, when no line matches.
func SetQuantity(items Items, key Key, quantity float64) (Items, bool) {
	i := items.Index(key)
	if i < 0 {
		return items, false
	}
	out := clone(items)
	out[i].Quantity = CoerceQuantity(quantity)
	return out, true
}

func clone(items Items) Items {
	out := make(Items, len(items), len(items)+1)
	copy(out, items)
	return out
}

func addQuantity(a, b int) int {
	if sum := int64(a) + int64(b); sum < MaxQuantity {
		return int(sum)
	}
	return MaxQuantity
}
