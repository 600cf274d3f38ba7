// internal/models/tag.go
package models

import "fmt"

// TagKind identifies a follow-up process that must run for a product. The set
// is closed; unknown kinds are rejected at the boundary so a typo can never
// create an unrecognized tag row.
type TagKind string

const (
	// TagImageNotIndexed marks a product whose primary image needs (re)indexing.
	// Its payload carries the image URL to index.
	TagImageNotIndexed TagKind = "image_not_indexed"
	// TagUpdateProductMeta marks a product whose metadata (brand domain
	// association) needs re-evaluation.
	TagUpdateProductMeta TagKind = "update_product_meta"
)

// TagAttrImageURL is the payload attribute of TagImageNotIndexed.
const TagAttrImageURL = "image_url"

// ParseTagKind validates a raw tag-kind string.
func ParseTagKind(raw string) (TagKind, error) {
	switch kind := TagKind(raw); kind {
	case TagImageNotIndexed, TagUpdateProductMeta:
		return kind, nil
	}
	return "", fmt.Errorf("unknown tag kind: %q", raw)
}

// IndexName returns the sparse secondary index serving filtered scans for
// this kind.
func (k TagKind) IndexName() string {
	return string(k) + "_idx"
}

// FlagAttribute returns the numeric attribute set to 1 on tag rows of this
// kind. The attribute keys the kind's sparse index.
func (k TagKind) FlagAttribute() string {
	return string(k)
}

// ProductTag is one signal row: a product URL, the kind of follow-up work it
// needs, and kind-specific payload attributes.
type ProductTag struct {
	StoreProductURL string                 `json:"store_product_url"`
	Kind            TagKind                `json:"tag"`
	Attributes      map[string]interface{} `json:"attributes,omitempty"`
}

// ImageURL returns the image payload of an image_not_indexed tag, or "".
func (t ProductTag) ImageURL() string {
	url, _ := t.Attributes[TagAttrImageURL].(string)
	return url
}
