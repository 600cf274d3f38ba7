// internal/services/fake_store_test.go
package services

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"

	"github.com/storesight/catalog-backend/internal/store"
)

// fakeStore is an in-memory Store with DynamoDB-like semantics: conditional
// puts, SET-style partial updates, and index queries served in small pages so
// cursor following is exercised.
type fakeStore struct {
	// tableKeys names the key attributes of each table, in key order.
	tableKeys map[string][]string
	tables    map[string]map[string]store.Item
	pageSize  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tableKeys: map[string][]string{
			"catalog_dev_product":     {"store_product_url"},
			"catalog_dev_product_tag": {"store_product_url", "tag"},
		},
		tables:   make(map[string]map[string]store.Item),
		pageSize: 2,
	}
}

func (f *fakeStore) table(name string) map[string]store.Item {
	if f.tables[name] == nil {
		f.tables[name] = make(map[string]store.Item)
	}
	return f.tables[name]
}

func (f *fakeStore) keyString(table string, item store.Item) string {
	parts := make([]string, 0, 2)
	for _, attr := range f.tableKeys[table] {
		parts = append(parts, aws.StringValue(item[attr].S))
	}
	return strings.Join(parts, "|")
}

func (f *fakeStore) PutItem(table string, item store.Item) error {
	f.table(table)[f.keyString(table, item)] = copyItem(item)
	return nil
}

func (f *fakeStore) PutItemIfAbsent(table string, item store.Item, keyAttr string) error {
	key := f.keyString(table, item)
	if _, exists := f.table(table)[key]; exists {
		return store.ErrConditionFailed
	}
	f.table(table)[key] = copyItem(item)
	return nil
}

func (f *fakeStore) GetItem(table string, key store.Item) (store.Item, error) {
	item, ok := f.table(table)[f.keyString(table, key)]
	if !ok {
		return nil, nil
	}
	return copyItem(item), nil
}

func (f *fakeStore) UpdateItemSet(table string, key store.Item, sets store.Item) error {
	keyStr := f.keyString(table, key)
	item, ok := f.table(table)[keyStr]
	if !ok {
		item = copyItem(key)
	}
	for attr, value := range sets {
		item[attr] = value
	}
	f.table(table)[keyStr] = item
	return nil
}

func (f *fakeStore) BatchDeleteItems(table string, keys []store.Item) error {
	for _, key := range keys {
		delete(f.table(table), f.keyString(table, key))
	}
	return nil
}

func (f *fakeStore) Query(spec store.QuerySpec) *store.Iterator {
	return store.NewIterator(spec, func(startKey store.Item, limit int64) ([]store.Item, store.Item, error) {
		matches := f.match(spec)

		offset := 0
		if startKey != nil {
			cursor := aws.StringValue(startKey["_cursor"].S)
			fmt.Sscanf(cursor, "%d", &offset)
		}

		end := offset + f.pageSize
		if limit > 0 && offset+int(limit) < end {
			end = offset + int(limit)
		}
		if end > len(matches) {
			end = len(matches)
		}

		page := make([]store.Item, 0, end-offset)
		for _, item := range matches[offset:end] {
			page = append(page, f.project(spec, item))
		}

		var lastKey store.Item
		if end < len(matches) {
			lastKey = store.Item{"_cursor": {S: aws.String(fmt.Sprint(end))}}
		}
		return page, lastKey, nil
	})
}

func (f *fakeStore) match(spec store.QuerySpec) []store.Item {
	var sparseAttr string
	if spec.Index != "" {
		// Index rows exist only when the row carries the index key attribute.
		sparseAttr = strings.TrimSuffix(spec.Index, "_idx")
	}

	var keys []string
	for key, item := range f.table(spec.Table) {
		if sparseAttr != "" && item[sparseAttr] == nil {
			continue
		}
		if !attrEqual(item[spec.HashKey], spec.HashValue) {
			continue
		}
		if spec.RangeKey != "" && !attrEqual(item[spec.RangeKey], spec.RangeValue) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	matches := make([]store.Item, 0, len(keys))
	for _, key := range keys {
		matches = append(matches, f.table(spec.Table)[key])
	}
	return matches
}

func (f *fakeStore) project(spec store.QuerySpec, item store.Item) store.Item {
	if len(spec.Projection) == 0 {
		return copyItem(item)
	}
	projected := make(store.Item, len(spec.Projection))
	for _, attr := range spec.Projection {
		if value, ok := item[attr]; ok {
			projected[attr] = value
		}
	}
	return projected
}

func attrEqual(a, b *dynamodb.AttributeValue) bool {
	if a == nil || b == nil {
		return false
	}
	if a.S != nil && b.S != nil {
		return aws.StringValue(a.S) == aws.StringValue(b.S)
	}
	if a.N != nil && b.N != nil {
		return aws.StringValue(a.N) == aws.StringValue(b.N)
	}
	return false
}

func copyItem(item store.Item) store.Item {
	dup := make(store.Item, len(item))
	for attr, value := range item {
		dup[attr] = value
	}
	return dup
}
