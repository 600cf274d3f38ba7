// internal/models/product.go
package models

// Attribute names shared across the validation, storage and service layers.
// The canonical record is schemaless at the storage level; these constants
// cover the attributes the code itself reads or writes.
const (
	AttrStoreProductURL     = "store_product_url"
	AttrFullStoreProductURL = "full_store_product_url"
	AttrStoreDomain         = "store_domain"
	AttrBrandDomain         = "brand_domain"
	AttrVendorName          = "vendor_name"
	AttrIsAvailable         = "is_available"
	AttrProductUUID         = "product_uuid"
	AttrImageURLs           = "image_urls"
	AttrBrandDomainHint     = "store_product_brand_domain"
)

// Product is a store product record keyed by its canonical URL. Attribute
// values carry the normalized representations produced by the validation
// layer (is_available as 0/1, timestamps as UTC-offset strings).
type Product map[string]interface{}

// PrimaryImageURL returns the first entry of the image_urls attribute, or ""
// when the record carries no image data.
func (p Product) PrimaryImageURL() string {
	urls, ok := p[AttrImageURLs].([]string)
	if !ok || len(urls) == 0 {
		return ""
	}
	return urls[0]
}

// productUUIDBlacklist holds UUIDs of known-bad products that must never be
// returned from index queries or used in feature calculations. Built once at
// init and never mutated.
var productUUIDBlacklist = map[string]struct{}{
	// Products using the Shopify default "gift card" image
	"fee0e2fe426e4da7aaf8581772579dd8": {},
}

// IsBlacklistedProductUUID reports whether a product UUID is permanently
// excluded from query results.
func IsBlacklistedProductUUID(productUUID string) bool {
	_, ok := productUUIDBlacklist[productUUID]
	return ok
}
