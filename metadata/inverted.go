package metadata

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// InvertedIndex maps metadata field values to Roaring Bitmaps of placement
// sequence numbers, enabling fast pre-filtering of range queries.
//
// Structure: field -> valueKey -> bitmap of seqs. Bitmaps are compressed and
// support fast set operations, so even large worlds with repetitive metadata
// stay cheap to filter.
type InvertedIndex struct {
	mu       sync.RWMutex
	count    int
	inverted map[string]map[string]*roaring.Bitmap
}

// NewInvertedIndex creates an empty inverted index.
func NewInvertedIndex() *InvertedIndex {
	return &InvertedIndex{
		inverted: make(map[string]map[string]*roaring.Bitmap),
	}
}

// Add indexes the document under the given placement sequence number.
// Nil or empty documents are ignored.
func (ii *InvertedIndex) Add(seq uint32, doc Document) {
	if len(doc) == 0 {
		return
	}

	ii.mu.Lock()
	defer ii.mu.Unlock()

	ii.count++
	for key, value := range doc {
		valueMap, ok := ii.inverted[key]
		if !ok {
			valueMap = make(map[string]*roaring.Bitmap)
			ii.inverted[key] = valueMap
		}

		valueKey := value.Key()
		bitmap, ok := valueMap[valueKey]
		if !ok {
			bitmap = roaring.New()
			valueMap[valueKey] = bitmap
		}

		bitmap.Add(seq)
	}
}

// Len returns the number of documents indexed.
func (ii *InvertedIndex) Len() int {
	ii.mu.RLock()
	defer ii.mu.RUnlock()
	return ii.count
}

// CompileFilter compiles a FilterSet into a bitmap of matching sequence
// numbers. Returns nil if the set contains an operator that cannot be
// compiled (gt, lt, contains, ...); callers should then fall back to
// evaluating FilterSet.Matches per candidate.
//
// The returned bitmap is detached from the index and safe to use after
// concurrent Adds.
func (ii *InvertedIndex) CompileFilter(fs *FilterSet) *roaring.Bitmap {
	if fs == nil || len(fs.Filters) == 0 {
		return nil
	}

	ii.mu.RLock()
	defer ii.mu.RUnlock()

	var result *roaring.Bitmap

	for _, filter := range fs.Filters {
		var filterBitmap *roaring.Bitmap

		switch filter.Operator {
		case OpEqual:
			if bm := ii.bitmapLocked(filter.Key, filter.Value); bm != nil {
				filterBitmap = bm.Clone()
			}

		case OpIn:
			arr, ok := filter.Value.AsArray()
			if !ok {
				return nil
			}

			filterBitmap = roaring.New()
			for _, v := range arr {
				if bm := ii.bitmapLocked(filter.Key, v); bm != nil {
					filterBitmap.Or(bm)
				}
			}

		default:
			// Remaining operators require per-document evaluation.
			return nil
		}

		// Intersect with previous results (AND semantics).
		if result == nil {
			if filterBitmap == nil {
				return roaring.New()
			}
			result = filterBitmap
		} else if filterBitmap != nil {
			result.And(filterBitmap)
		} else {
			return roaring.New()
		}

		if result.IsEmpty() {
			return result
		}
	}

	return result
}

// bitmapLocked retrieves the live bitmap for a field=value combination.
// Returns nil if no documents carry that value. Caller must hold ii.mu.
func (ii *InvertedIndex) bitmapLocked(key string, value Value) *roaring.Bitmap {
	valueMap, ok := ii.inverted[key]
	if !ok {
		return nil
	}

	bitmap, ok := valueMap[value.Key()]
	if !ok {
		return nil
	}

	return bitmap
}
