// internal/services/product_service.go
package services

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/storesight/catalog-backend/internal/config"
	"github.com/storesight/catalog-backend/internal/models"
	"github.com/storesight/catalog-backend/internal/store"
	"github.com/storesight/catalog-backend/internal/utils"
	"github.com/storesight/catalog-backend/internal/validation"
)

// Secondary indexes on the product table.
const (
	storeDomainIndex = "store_domain_idx"
	brandDomainIndex = "brand_domain_idx"
	productUUIDIndex = "product_uuid_idx"
)

// ProductService is the sole writer of store product records and the sole
// trigger point for tag creation.
type ProductService struct {
	store        store.Store
	tags         *TagService
	productTable string
	log          *logrus.Entry
}

func NewProductService(st store.Store, tags *TagService, cfg *config.Config) *ProductService {
	return &ProductService{
		store:        st,
		tags:         tags,
		productTable: cfg.TableName("product"),
		log:          logrus.WithField("component", "product_service"),
	}
}

type CreateProductInput struct {
	ProductURL  string
	StoreDomain string
	IsAvailable bool
	// Attributes carries the remaining record attributes (title, prices,
	// scrape timestamps, ...) keyed by schema attribute name.
	Attributes map[string]interface{}
	// WarnInvalid normalizes leniently: type-mismatched optional attributes
	// are dropped with a logged warning instead of rejecting the call.
	WarnInvalid bool
}

type UpdateProductInput struct {
	ProductURL  string
	Attributes  map[string]interface{}
	WarnInvalid bool
}

type FetchOptions struct {
	// IsAvailable restricts results by availability. Nil drops the condition
	// and matches either state.
	IsAvailable *bool
	// Limit bounds the total number of yielded products; blacklisted rows do
	// not count. Zero means unbounded.
	Limit int64
	// OnlyAttributes projects each product down to the named attributes.
	// product_uuid is always fetched internally for the blacklist check and
	// stripped again when not requested.
	OnlyAttributes []string
	ConsistentRead bool
}

// Create adds a new store product record. The canonical URL derived from
// ProductURL is the record key; a record already existing at that key fails
// with a DuplicateProductError. On success the new record is tagged for
// metadata evaluation, and for image indexing when it carries an image.
func (s *ProductService) Create(input *CreateProductInput) (models.Product, error) {
	storeProductURL := utils.CanonicalProductURL(input.ProductURL)

	itemData := map[string]interface{}{
		models.AttrStoreProductURL:     storeProductURL,
		models.AttrFullStoreProductURL: input.ProductURL,
		models.AttrStoreDomain:         input.StoreDomain,
		// Stored as a number so availability-keyed indexes work.
		models.AttrIsAvailable: boolToInt(input.IsAvailable),
	}
	for name, value := range input.Attributes {
		itemData[name] = value
	}

	parsed, warnings, err := validation.ParseStoreProductData(itemData, validation.Options{
		NewItem:     true,
		WarnInvalid: input.WarnInvalid,
	})
	if err != nil {
		return nil, err
	}
	s.logWarnings(storeProductURL, warnings)

	// Set brand domain directly when the hint is supplied for a new product.
	// For existing products brand_domain is assigned per product_uuid by the
	// bulk brand-resolution job, outside this service.
	if hint, ok := input.Attributes[models.AttrBrandDomainHint].(string); ok && hint != "" {
		parsed[models.AttrBrandDomain] = hint
	}

	// The record does not exist yet; assign it a fresh product ID.
	parsed[models.AttrProductUUID] = newProductUUID()

	item, err := store.EncodeItem(parsed)
	if err != nil {
		return nil, err
	}

	err = s.store.PutItemIfAbsent(s.productTable, item, models.AttrStoreProductURL)
	if errors.Is(err, store.ErrConditionFailed) {
		return nil, &DuplicateProductError{StoreProductURL: storeProductURL}
	}
	if err != nil {
		return nil, err
	}

	product := models.Product(parsed)

	// Tag the product for image feature extraction and indexing if it has an
	// image, and unconditionally for metadata evaluation.
	if primaryImageURL := product.PrimaryImageURL(); primaryImageURL != "" {
		err = s.tags.Set(storeProductURL, models.TagImageNotIndexed, map[string]interface{}{
			models.TagAttrImageURL: primaryImageURL,
		})
		if err != nil {
			return nil, err
		}
	}
	if err := s.tags.Set(storeProductURL, models.TagUpdateProductMeta, nil); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"store_product_url": storeProductURL,
		"store_domain":      input.StoreDomain,
	}).Info("Created store product")

	return product, nil
}

// Update rewrites exactly the supplied attributes of an existing record and
// refreshes follow-up tags when the primary image or the brand-domain hint
// changed. Updates are not conditioned on the previous record version: last
// writer wins, and concurrent updates may diff against a stale snapshot
// (acceptable, tags are idempotent).
func (s *ProductService) Update(input *UpdateProductInput) error {
	storeProductURL := utils.CanonicalProductURL(input.ProductURL)

	itemData := map[string]interface{}{
		models.AttrFullStoreProductURL: input.ProductURL,
	}
	for name, value := range input.Attributes {
		itemData[name] = value
	}

	oldItem, err := s.store.GetItem(s.productTable, productKey(storeProductURL))
	if err != nil {
		return err
	}
	if oldItem == nil {
		return &NotFoundError{StoreProductURL: storeProductURL}
	}
	oldAttrs := store.DecodeItem(oldItem)

	oldPrimaryImageURL := firstImageURL(oldAttrs[models.AttrImageURLs])
	newPrimaryImageURL := firstImageURL(itemData[models.AttrImageURLs])

	// Assume the query string does not affect image contents; compare the
	// URLs canonicalized so an updated signature alone does not retrigger
	// indexing.
	imageNotIndexed := newPrimaryImageURL != "" &&
		utils.CanonicalProductURL(newPrimaryImageURL) != utils.CanonicalProductURL(oldPrimaryImageURL)

	updateProductMeta := brandHint(oldAttrs) != brandHint(itemData)

	parsed, warnings, err := validation.ParseStoreProductData(itemData, validation.Options{
		WarnInvalid: input.WarnInvalid,
	})
	if err != nil {
		return err
	}
	s.logWarnings(storeProductURL, warnings)

	sets, err := store.EncodeItem(parsed)
	if err != nil {
		return err
	}
	if err := s.store.UpdateItemSet(s.productTable, productKey(storeProductURL), sets); err != nil {
		return err
	}

	// Flag the new image for feature extraction and indexing.
	if imageNotIndexed {
		err = s.tags.Set(storeProductURL, models.TagImageNotIndexed, map[string]interface{}{
			models.TagAttrImageURL: newPrimaryImageURL,
		})
		if err != nil {
			return err
		}
	}
	// Flag the product metadata for re-evaluation of its brand domain.
	if updateProductMeta {
		if err := s.tags.Set(storeProductURL, models.TagUpdateProductMeta, nil); err != nil {
			return err
		}
	}

	return nil
}

// Get point-reads a record by product URL. A missing record returns
// (nil, nil), not an error.
func (s *ProductService) Get(productURL string) (models.Product, error) {
	storeProductURL := utils.CanonicalProductURL(productURL)

	item, err := s.store.GetItem(s.productTable, productKey(storeProductURL))
	if err != nil || item == nil {
		return nil, err
	}
	return models.Product(store.DecodeItem(item)), nil
}

// DeleteAll removes the records for the given product URLs along with every
// tag row of theirs, regardless of kind.
func (s *ProductService) DeleteAll(productURLs []string) error {
	canonical := make([]string, 0, len(productURLs))
	keys := make([]store.Item, 0, len(productURLs))
	for _, url := range productURLs {
		storeProductURL := utils.CanonicalProductURL(url)
		canonical = append(canonical, storeProductURL)
		keys = append(keys, productKey(storeProductURL))
	}

	if err := s.store.BatchDeleteItems(s.productTable, keys); err != nil {
		return err
	}
	return s.tags.DeleteAllForURLs(canonical)
}

// FetchByStore queries available products of one store domain.
func (s *ProductService) FetchByStore(storeDomain string, opts FetchOptions) *ProductIterator {
	return s.fetchProducts(storeDomainIndex, models.AttrStoreDomain, storeDomain, opts)
}

// FetchByBrand queries available products of one brand domain.
func (s *ProductService) FetchByBrand(brandDomain string, opts FetchOptions) *ProductIterator {
	return s.fetchProducts(brandDomainIndex, models.AttrBrandDomain, brandDomain, opts)
}

// FetchByProductUUID queries the records of one mega-product group.
func (s *ProductService) FetchByProductUUID(productUUID string, opts FetchOptions) *ProductIterator {
	return s.fetchProducts(productUUIDIndex, models.AttrProductUUID, productUUID, opts)
}

func (s *ProductService) fetchProducts(index, hashKey, hashValue string, opts FetchOptions) *ProductIterator {
	spec := store.QuerySpec{
		Table:          s.productTable,
		Index:          index,
		HashKey:        hashKey,
		HashValue:      &dynamodb.AttributeValue{S: aws.String(hashValue)},
		ConsistentRead: opts.ConsistentRead,
		Limit:          opts.Limit,
	}

	if opts.IsAvailable != nil {
		spec.RangeKey = models.AttrIsAvailable
		spec.RangeValue = &dynamodb.AttributeValue{
			N: aws.String(fmt.Sprint(boolToInt(*opts.IsAvailable))),
		}
	}

	uuidRequested := false
	if opts.OnlyAttributes != nil {
		// Always retrieve product_uuid so blacklisted UUIDs can be filtered
		// from the results.
		projection := append([]string(nil), opts.OnlyAttributes...)
		for _, attr := range projection {
			if attr == models.AttrProductUUID {
				uuidRequested = true
				break
			}
		}
		if !uuidRequested {
			projection = append(projection, models.AttrProductUUID)
		}
		spec.Projection = projection
	}

	spec.Filter = func(item store.Item) bool {
		productUUID := ""
		if av := item[models.AttrProductUUID]; av != nil {
			productUUID = aws.StringValue(av.S)
		}
		return !models.IsBlacklistedProductUUID(productUUID)
	}

	stripUUID := opts.OnlyAttributes != nil && !uuidRequested
	spec.Transform = func(item store.Item) store.Item {
		// Availability is stored as a number (required for indexing); hand
		// back a boolean.
		if av := item[models.AttrIsAvailable]; av != nil && av.N != nil {
			item[models.AttrIsAvailable] = &dynamodb.AttributeValue{
				BOOL: aws.Bool(aws.StringValue(av.N) != "0"),
			}
		}
		if stripUUID {
			delete(item, models.AttrProductUUID)
		}
		return item
	}

	return &ProductIterator{it: s.store.Query(spec)}
}

// ProductIterator yields the decoded products of one index query.
type ProductIterator struct {
	it      *store.Iterator
	current models.Product
}

func (p *ProductIterator) Next() bool {
	if !p.it.Next() {
		return false
	}
	p.current = models.Product(store.DecodeItem(p.it.Item()))
	return true
}

// Product returns the record most recently yielded by Next.
func (p *ProductIterator) Product() models.Product {
	return p.current
}

func (p *ProductIterator) Err() error {
	return p.it.Err()
}

// Collect drains the iterator into a slice.
func (p *ProductIterator) Collect() ([]models.Product, error) {
	var products []models.Product
	for p.Next() {
		products = append(products, p.Product())
	}
	return products, p.Err()
}

func (s *ProductService) logWarnings(storeProductURL string, warnings []validation.Warning) {
	for _, warning := range warnings {
		s.log.WithFields(logrus.Fields{
			"store_product_url": storeProductURL,
			"attribute":         warning.Attribute,
		}).Warn(warning.String())
	}
}

func productKey(storeProductURL string) store.Item {
	return store.Item{
		models.AttrStoreProductURL: {S: aws.String(storeProductURL)},
	}
}

// newProductUUID renders a random 128-bit identifier as 32 hex characters.
func newProductUUID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// firstImageURL extracts the primary image URL from a raw or decoded
// image_urls value.
func firstImageURL(value interface{}) string {
	switch urls := value.(type) {
	case []string:
		if len(urls) > 0 {
			return urls[0]
		}
	case []interface{}:
		if len(urls) > 0 {
			if url, ok := urls[0].(string); ok {
				return url
			}
		}
	}
	return ""
}

// brandHint reads the store_product_brand_domain attribute as a string,
// treating a missing or non-string value as absent. A hint differing by
// presence alone still counts as changed.
func brandHint(attrs map[string]interface{}) string {
	hint, _ := attrs[models.AttrBrandDomainHint].(string)
	return hint
}
