package localstore

import (
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/fastpoint/fastpoint/model"
)

// filterIndex is a payload inverted index: key -> value -> bitmap of local
// ids. Local ids are collection-scoped and assigned at first insert.
type filterIndex struct {
	inverted map[string]map[string]*roaring.Bitmap
}

func newFilterIndex() *filterIndex {
	return &filterIndex{inverted: make(map[string]map[string]*roaring.Bitmap)}
}

// valueKey normalizes payload values for posting-list lookup. Numeric
// values render identically whether they arrive as int or float64 (the
// JSON round-trip through persistence produces float64).
func valueKey(v any) string {
	switch n := v.(type) {
	case int:
		return fmt.Sprintf("%g", float64(n))
	case int32:
		return fmt.Sprintf("%g", float64(n))
	case int64:
		return fmt.Sprintf("%g", float64(n))
	case float32:
		return fmt.Sprintf("%g", float64(n))
	case float64:
		return fmt.Sprintf("%g", n)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// add indexes every scalar payload field of a point.
func (x *filterIndex) add(local uint32, payload map[string]any) {
	for key, val := range payload {
		vk := valueKey(val)
		valueMap, ok := x.inverted[key]
		if !ok {
			valueMap = make(map[string]*roaring.Bitmap)
			x.inverted[key] = valueMap
		}
		bm, ok := valueMap[vk]
		if !ok {
			bm = roaring.New()
			valueMap[vk] = bm
		}
		bm.Add(local)
	}
}

// remove unindexes a point's previous payload before an overwrite.
func (x *filterIndex) remove(local uint32, payload map[string]any) {
	for key, val := range payload {
		if valueMap, ok := x.inverted[key]; ok {
			if bm, ok := valueMap[valueKey(val)]; ok {
				bm.Remove(local)
			}
		}
	}
}

// eval returns the bitmap of local ids satisfying the filter, or nil when
// the filter is empty (meaning: no restriction).
func (x *filterIndex) eval(f *model.Filter) *roaring.Bitmap {
	if f == nil || len(f.Must) == 0 {
		return nil
	}
	var acc *roaring.Bitmap
	for _, cond := range f.Must {
		bm := x.lookup(cond)
		if acc == nil {
			acc = bm.Clone()
		} else {
			acc.And(bm)
		}
		if acc.IsEmpty() {
			return acc
		}
	}
	return acc
}

func (x *filterIndex) lookup(cond model.FieldMatch) *roaring.Bitmap {
	if valueMap, ok := x.inverted[cond.Key]; ok {
		if bm, ok := valueMap[valueKey(cond.Value)]; ok {
			return bm
		}
	}
	return roaring.New()
}
