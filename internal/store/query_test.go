// internal/store/query_test.go
package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedItems(start, count int) []Item {
	items := make([]Item, 0, count)
	for i := start; i < start+count; i++ {
		items = append(items, Item{
			"id": {S: aws.String(fmt.Sprintf("item-%03d", i))},
		})
	}
	return items
}

// pagedFetch serves fixed-size pages from a backing slice, returning a
// continuation key until the slice is exhausted.
func pagedFetch(items []Item, pageSize int) PageFunc {
	return func(startKey Item, limit int64) ([]Item, Item, error) {
		offset := 0
		if startKey != nil {
			fmt.Sscanf(aws.StringValue(startKey["id"].S), "item-%03d", &offset)
			offset++
		}

		end := offset + pageSize
		if limit > 0 && offset+int(limit) < end {
			end = offset + int(limit)
		}
		if end > len(items) {
			end = len(items)
		}

		page := items[offset:end]
		var lastKey Item
		if end < len(items) {
			lastKey = page[len(page)-1]
		}
		return page, lastKey, nil
	}
}

func TestIteratorFollowsCursorAcrossPages(t *testing.T) {
	all := numberedItems(0, 10)
	it := NewIterator(QuerySpec{}, pagedFetch(all, 3))

	collected, err := it.Collect()
	require.NoError(t, err)
	assert.Len(t, collected, 10)
	assert.Equal(t, "item-000", aws.StringValue(collected[0]["id"].S))
	assert.Equal(t, "item-009", aws.StringValue(collected[9]["id"].S))

	// Exhausted iterators stay exhausted.
	assert.False(t, it.Next())
}

func TestIteratorLimitTrimsFinalPage(t *testing.T) {
	all := numberedItems(0, 10)
	it := NewIterator(QuerySpec{Limit: 7}, pagedFetch(all, 3))

	collected, err := it.Collect()
	require.NoError(t, err)
	assert.Len(t, collected, 7)
}

func TestIteratorFilteredRowsDoNotCountAgainstLimit(t *testing.T) {
	all := numberedItems(0, 10)
	// Reject the first four rows; a limit of 5 must still yield 5 rows even
	// though the store-level limit runs out before the filter is satisfied.
	spec := QuerySpec{
		Limit: 5,
		Filter: func(item Item) bool {
			var n int
			fmt.Sscanf(aws.StringValue(item["id"].S), "item-%03d", &n)
			return n >= 4
		},
	}
	it := NewIterator(spec, pagedFetch(all, 3))

	collected, err := it.Collect()
	require.NoError(t, err)
	require.Len(t, collected, 5)
	assert.Equal(t, "item-004", aws.StringValue(collected[0]["id"].S))
	assert.Equal(t, "item-008", aws.StringValue(collected[4]["id"].S))
}

func TestIteratorTransform(t *testing.T) {
	all := numberedItems(0, 3)
	spec := QuerySpec{
		Transform: func(item Item) Item {
			item["marked"] = &dynamodb.AttributeValue{BOOL: aws.Bool(true)}
			return item
		},
	}
	it := NewIterator(spec, pagedFetch(all, 2))

	collected, err := it.Collect()
	require.NoError(t, err)
	for _, item := range collected {
		assert.True(t, aws.BoolValue(item["marked"].BOOL))
	}
}

func TestIteratorEmptyPagesWithCursor(t *testing.T) {
	// A store may return an empty page together with a continuation key; the
	// iterator must keep following the cursor.
	pages := [][]Item{numberedItems(0, 2), {}, numberedItems(2, 2)}
	call := 0
	fetch := func(startKey Item, limit int64) ([]Item, Item, error) {
		page := pages[call]
		var lastKey Item
		if call < len(pages)-1 {
			lastKey = Item{"cursor": {S: aws.String(fmt.Sprint(call))}}
		}
		call++
		return page, lastKey, nil
	}

	collected, err := NewIterator(QuerySpec{}, fetch).Collect()
	require.NoError(t, err)
	assert.Len(t, collected, 4)
}

func TestIteratorPropagatesStoreFault(t *testing.T) {
	fault := errors.New("throughput exceeded")
	calls := 0
	fetch := func(startKey Item, limit int64) ([]Item, Item, error) {
		calls++
		if calls == 1 {
			return numberedItems(0, 2), Item{"cursor": {S: aws.String("0")}}, nil
		}
		return nil, nil, fault
	}

	it := NewIterator(QuerySpec{}, fetch)
	assert.True(t, it.Next())
	assert.True(t, it.Next())
	assert.False(t, it.Next())
	assert.ErrorIs(t, it.Err(), fault)
}
