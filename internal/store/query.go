// internal/store/query.go
package store

// PageFunc fetches one page of rows starting after startKey. It returns the
// page, the continuation key (nil when the store signals no more pages) and
// any store fault. limit > 0 caps the rows fetched in this call.
type PageFunc func(startKey Item, limit int64) ([]Item, Item, error)

// Iterator walks a paginated index query lazily, transparently following the
// continuation cursor. It yields at most Limit rows after filtering, trimming
// the final page rather than trusting the store's own per-call limit.
//
// An Iterator is single-use; restarting a scan means issuing the query again.
// Page fetches are sequential by construction: each page's cursor depends on
// the previous response.
type Iterator struct {
	fetch PageFunc
	spec  QuerySpec

	page    []Item
	idx     int
	lastKey Item

	current Item
	yielded int64
	started bool
	done    bool
	err     error
}

func NewIterator(spec QuerySpec, fetch PageFunc) *Iterator {
	return &Iterator{fetch: fetch, spec: spec}
}

// Next advances to the next matching row. It returns false when the scan is
// exhausted or a store fault occurred; check Err afterwards.
func (it *Iterator) Next() bool {
	if it.done {
		return false
	}

	for {
		for it.idx < len(it.page) {
			item := it.page[it.idx]
			it.idx++

			if it.spec.Filter != nil && !it.spec.Filter(item) {
				continue
			}
			if it.spec.Transform != nil {
				item = it.spec.Transform(item)
			}

			it.current = item
			it.yielded++
			if it.spec.Limit > 0 && it.yielded >= it.spec.Limit {
				it.done = true
			}
			return true
		}

		if it.started && it.lastKey == nil {
			// No continuation key on the previous page: the scan is finished.
			it.done = true
			return false
		}

		var remaining int64
		if it.spec.Limit > 0 {
			remaining = it.spec.Limit - it.yielded
		}

		page, lastKey, err := it.fetch(it.lastKey, remaining)
		if err != nil {
			it.err = err
			it.done = true
			return false
		}
		it.started = true
		it.page = page
		it.idx = 0
		it.lastKey = lastKey
	}
}

// Item returns the row most recently yielded by Next.
func (it *Iterator) Item() Item {
	return it.current
}

// Err returns the store fault that terminated the scan, if any.
func (it *Iterator) Err() error {
	return it.err
}

// Collect drains the iterator into a slice.
func (it *Iterator) Collect() ([]Item, error) {
	var items []Item
	for it.Next() {
		items = append(items, it.Item())
	}
	return items, it.Err()
}
