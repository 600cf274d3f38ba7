// internal/services/tag_service.go
package services

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/sirupsen/logrus"

	"github.com/storesight/catalog-backend/internal/config"
	"github.com/storesight/catalog-backend/internal/models"
	"github.com/storesight/catalog-backend/internal/store"
	"github.com/storesight/catalog-backend/internal/utils"
)

// TagService owns the lifecycle mechanics of product tag rows. It decides
// nothing about when tags should be set; that policy belongs to
// ProductService.
type TagService struct {
	store    store.Store
	tagTable string
	log      *logrus.Entry
}

func NewTagService(st store.Store, cfg *config.Config) *TagService {
	return &TagService{
		store:    st,
		tagTable: cfg.TableName("product_tag"),
		log:      logrus.WithField("component", "tag_service"),
	}
}

// Set upserts one tag row for (url, kind). Setting the same tag repeatedly is
// idempotent; the last write wins. The kind's numeric flag attribute keys its
// sparse index and is always written alongside the payload.
func (s *TagService) Set(storeProductURL string, kind models.TagKind, attrs map[string]interface{}) error {
	storeProductURL = utils.CanonicalProductURL(storeProductURL)

	rowAttrs := map[string]interface{}{
		models.AttrStoreProductURL: storeProductURL,
		"tag":                      string(kind),
		kind.FlagAttribute():       1,
	}
	for name, value := range attrs {
		rowAttrs[name] = value
	}

	item, err := store.EncodeItem(rowAttrs)
	if err != nil {
		return err
	}
	return s.store.PutItem(s.tagTable, item)
}

// Fetch returns a lazy iterator over the tag rows of the given product URLs,
// walked one canonicalized URL at a time. A non-nil kind restricts the scan
// to that kind via its sparse index. Each call starts a fresh cursor walk.
func (s *TagService) Fetch(storeProductURLs []string, kind *models.TagKind) *TagIterator {
	return &TagIterator{
		svc:  s,
		urls: storeProductURLs,
		kind: kind,
	}
}

// Delete removes the (url, kind) row for every supplied URL. Absent rows are
// not an error.
func (s *TagService) Delete(kind models.TagKind, storeProductURLs []string) error {
	keys := make([]store.Item, 0, len(storeProductURLs))
	for _, url := range storeProductURLs {
		keys = append(keys, tagKey(utils.CanonicalProductURL(url), string(kind)))
	}
	return s.store.BatchDeleteItems(s.tagTable, keys)
}

// DeleteAllForURLs removes every tag row of the given URLs regardless of
// kind. Used by the product delete cascade.
func (s *TagService) DeleteAllForURLs(storeProductURLs []string) error {
	var keys []store.Item

	tags := s.Fetch(storeProductURLs, nil)
	for tags.Next() {
		tag := tags.Tag()
		keys = append(keys, tagKey(tag.StoreProductURL, string(tag.Kind)))
	}
	if err := tags.Err(); err != nil {
		return err
	}

	if len(keys) == 0 {
		return nil
	}
	return s.store.BatchDeleteItems(s.tagTable, keys)
}

func tagKey(storeProductURL, kind string) store.Item {
	return store.Item{
		models.AttrStoreProductURL: {S: aws.String(storeProductURL)},
		"tag":                      {S: aws.String(kind)},
	}
}

// TagIterator yields tag rows across a set of product URLs, following the
// pagination cursor of each per-URL query sequentially.
type TagIterator struct {
	svc  *TagService
	urls []string
	kind *models.TagKind

	pos     int
	current *store.Iterator
	tag     models.ProductTag
	err     error
}

func (it *TagIterator) Next() bool {
	if it.err != nil {
		return false
	}

	for {
		if it.current == nil {
			if it.pos >= len(it.urls) {
				return false
			}
			url := utils.CanonicalProductURL(it.urls[it.pos])
			it.pos++

			spec := store.QuerySpec{
				Table:     it.svc.tagTable,
				HashKey:   models.AttrStoreProductURL,
				HashValue: &dynamodb.AttributeValue{S: aws.String(url)},
			}
			if it.kind != nil {
				spec.Index = it.kind.IndexName()
			}
			it.current = it.svc.store.Query(spec)
		}

		if it.current.Next() {
			it.tag = it.decodeTag(it.current.Item())
			return true
		}
		if err := it.current.Err(); err != nil {
			it.err = err
			return false
		}
		it.current = nil
	}
}

// Tag returns the row most recently yielded by Next.
func (it *TagIterator) Tag() models.ProductTag {
	return it.tag
}

func (it *TagIterator) Err() error {
	return it.err
}

// Collect drains the iterator into a slice.
func (it *TagIterator) Collect() ([]models.ProductTag, error) {
	var tags []models.ProductTag
	for it.Next() {
		tags = append(tags, it.Tag())
	}
	return tags, it.Err()
}

func (it *TagIterator) decodeTag(item store.Item) models.ProductTag {
	attrs := store.DecodeItem(item)

	url, _ := attrs[models.AttrStoreProductURL].(string)
	kindName, ok := attrs["tag"].(string)
	if !ok && it.kind != nil {
		// Sparse kind indexes project keys only; the tag attribute is implied
		// by the index that was queried.
		kindName = string(*it.kind)
	}

	return models.ProductTag{
		StoreProductURL: url,
		Kind:            models.TagKind(kindName),
		Attributes:      attrs,
	}
}
