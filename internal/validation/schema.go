// internal/validation/schema.go
package validation

import (
	"encoding/json"
	"math"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storesight/catalog-backend/internal/models"
)

// MinimumPrice is the lowest primary price a product may carry. The threshold
// applies unconditionally, in both strict and lenient mode.
var MinimumPrice = decimal.RequireFromString("0.02")

type converterFunc func(value interface{}) (interface{}, error)

// attributeSchema is one entry of the declarative attribute rule table:
// attribute name, its normalizing converter, and whether a new record must
// carry it.
type attributeSchema struct {
	name     string
	convert  converterFunc
	required bool
}

// itemAttributes is the fixed, ordered rule table for store product records.
// Attribute names not listed here are rejected outright.
var itemAttributes = []attributeSchema{
	{models.AttrStoreProductURL, stringValue, true},
	{models.AttrFullStoreProductURL, stringValue, true},
	{models.AttrStoreDomain, stringValue, true},
	{models.AttrIsAvailable, availabilityFlag, true},
	{"title", productTitle, true},
	{"description", stringValue, false},
	{models.AttrImageURLs, stringList, false},
	{"product_type", stringValue, false},
	{"published_at", isoDateString, false},
	{"created_at", isoDateString, false},
	{"updated_at", isoDateString, false},
	{"removed_at", isoDateString, false},
	{"primary_currency", stringValue, false},
	{"primary_price", price, false},
	{"best_selling_position", integer, false},
	{models.AttrVendorName, stringValue, false},
	{models.AttrBrandDomainHint, stringValue, false},
	{"store_product_brand_domain_association", stringValue, false},
	{"store_platform", stringValue, false},
	{"first_scraped_at", isoDateString, true},
	{"last_scraped_at", isoDateString, true},
	{"scraper_type", stringValue, true},
	{"json_data", jsonString, false},
}

var validAttributes = func() map[string]struct{} {
	names := make(map[string]struct{}, len(itemAttributes))
	for _, attr := range itemAttributes {
		names[attr.name] = struct{}{}
	}
	return names
}()

// RequiredAttributes returns the names a new record must carry, sorted.
func RequiredAttributes() []string {
	var names []string
	for _, attr := range itemAttributes {
		if attr.required {
			names = append(names, attr.name)
		}
	}
	sort.Strings(names)
	return names
}

// Options control one normalization call.
type Options struct {
	// NewItem enforces the required-attribute check after normalization.
	// Updates leave it false, making every attribute optional.
	NewItem bool
	// WarnInvalid downgrades type/format mismatches on present attributes to
	// a dropped attribute plus a Warning instead of aborting. Semantic
	// failures (blacklisted title, sub-minimum price) still abort.
	WarnInvalid bool
}

// ParseStoreProductData validates and normalizes raw record attributes into
// their storage representation. Unknown attribute names are a hard rejection.
// Returned warnings are only ever non-empty with Options.WarnInvalid set.
func ParseStoreProductData(itemData map[string]interface{}, opts Options) (map[string]interface{}, []Warning, error) {
	var invalidAttrs []string
	for name := range itemData {
		if _, ok := validAttributes[name]; !ok {
			invalidAttrs = append(invalidAttrs, name)
		}
	}
	if len(invalidAttrs) > 0 {
		sort.Strings(invalidAttrs)
		return nil, nil, errorf("invalid attributes: %v", invalidAttrs)
	}

	parsed := make(map[string]interface{}, len(itemData))
	var warnings []Warning

	for _, attr := range itemAttributes {
		raw, present := itemData[attr.name]
		if !present {
			continue
		}

		value, err := attr.convert(raw)
		if err != nil {
			if opts.WarnInvalid && isMismatch(err) {
				warnings = append(warnings, Warning{Attribute: attr.name, Message: err.Error()})
				continue
			}
			if isMismatch(err) {
				return nil, warnings, errorf("invalid %q attribute: %s", attr.name, err.Error())
			}
			return nil, warnings, err
		}

		if attr.name == models.AttrImageURLs {
			urls, dropped, err := normalizeImageURLs(value.([]string), opts.WarnInvalid)
			if err != nil {
				return nil, warnings, err
			}
			warnings = append(warnings, dropped...)
			if len(urls) == 0 {
				// No valid images means "no image data", not a rejection.
				continue
			}
			value = urls
		}

		parsed[attr.name] = value
	}

	if rawPrice, ok := parsed["primary_price"]; ok {
		if rawPrice.(decimal.Decimal).LessThan(MinimumPrice) {
			return nil, warnings, errorf("primary price value must be >= %s", MinimumPrice)
		}
	}

	if opts.NewItem {
		var missing []string
		for _, attr := range itemAttributes {
			if attr.required {
				if _, ok := parsed[attr.name]; !ok {
					missing = append(missing, attr.name)
				}
			}
		}
		if len(missing) > 0 {
			return nil, warnings, errorf("missing required attributes: %v", missing)
		}
	}

	return parsed, warnings, nil
}

func normalizeImageURLs(urls []string, warnInvalid bool) ([]string, []Warning, error) {
	var valid []string
	var warnings []Warning
	for _, raw := range urls {
		if err := validateImageURL(raw); err != nil {
			if !warnInvalid {
				return nil, nil, err
			}
			warnings = append(warnings, Warning{
				Attribute: models.AttrImageURLs,
				Message:   "skipping invalid image URL: " + raw,
			})
			continue
		}
		valid = append(valid, raw)
	}
	return valid, warnings, nil
}

func validateImageURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return errorf("invalid URL (missing host): %q", raw)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errorf(`invalid URL (scheme != "http/https"): %q`, raw)
	}

	if invalid, match := containsBlacklistTokens(parsed.Path, imageURLBlacklistTokenGroups); invalid {
		return errorf("blacklisted token(s) %q in URL path", match)
	}
	return nil
}

// Converters. Each returns the normalized storage value, a *mismatchError for
// a basic type/format problem, or a semantic *Error.

func stringValue(v interface{}) (interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return nil, mismatchf("value is not a string: %v", v)
	}
	return s, nil
}

func integer(v interface{}) (interface{}, error) {
	switch n := v.(type) {
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return nil, mismatchf("value is not an integer: %v", v)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return nil, mismatchf("value is not an integer: %v", v)
		}
		return int(i), nil
	}
	return nil, mismatchf("value is not an integer: %v", v)
}

// availabilityFlag coerces the availability input to 0/1. The flag is stored
// as a number so availability-keyed indexes work.
func availabilityFlag(v interface{}) (interface{}, error) {
	n, err := integer(v)
	if err != nil {
		return nil, err
	}
	if n.(int) != 0 {
		return 1, nil
	}
	return 0, nil
}

func productTitle(v interface{}) (interface{}, error) {
	title, ok := v.(string)
	if !ok {
		return nil, mismatchf("value is not a string: %v", v)
	}
	if title == "" {
		return nil, errorf("product must have a title")
	}

	if invalid, match := containsBlacklistTokens(title, productTitleBlacklistTokenGroups); invalid {
		return nil, errorf("blacklisted token(s) %q in product title", match)
	}
	return title, nil
}

func price(v interface{}) (interface{}, error) {
	switch p := v.(type) {
	case string:
		parsed, err := decimal.NewFromString(p)
		if err != nil {
			return nil, mismatchf("invalid price value: %v", v)
		}
		return parsed, nil
	case json.Number:
		parsed, err := decimal.NewFromString(p.String())
		if err != nil {
			return nil, mismatchf("invalid price value: %v", v)
		}
		return parsed, nil
	case float64:
		// decimal.NewFromFloat panics on non-finite input.
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return nil, mismatchf("invalid price value: %v", v)
		}
		return decimal.NewFromFloat(p), nil
	case int:
		return decimal.NewFromInt(int64(p)), nil
	case int64:
		return decimal.NewFromInt(p), nil
	case decimal.Decimal:
		return p, nil
	}
	return nil, mismatchf("invalid price value: %v", v)
}

// Accepted string timestamp layouts. The naive forms carry no offset and are
// assumed UTC.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// isoDateString normalizes a timestamp to an explicit UTC-offset string.
func isoDateString(v interface{}) (interface{}, error) {
	switch dt := v.(type) {
	case time.Time:
		return formatUTC(dt), nil
	case string:
		for _, layout := range datetimeLayouts {
			if parsed, err := time.Parse(layout, dt); err == nil {
				return formatUTC(parsed), nil
			}
		}
	}
	return nil, mismatchf("invalid datetime value: %v", v)
}

// formatUTC renders an explicit UTC offset and keeps sub-second precision
// (trailing zeros dropped) so normalization never loses timestamp detail.
func formatUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.999999-07:00")
}

func jsonString(v interface{}) (interface{}, error) {
	s, ok := v.(string)
	if !ok {
		return nil, mismatchf("value is not a string: %v", v)
	}
	if !json.Valid([]byte(s)) {
		return nil, mismatchf("value is not valid JSON: %v", v)
	}
	// Stored as-is; the payload is opaque to this system.
	return s, nil
}

func stringList(v interface{}) (interface{}, error) {
	switch list := v.(type) {
	case []string:
		if len(list) == 0 {
			return nil, mismatchf(`invalid "string list" value: %v`, v)
		}
		return append([]string(nil), list...), nil
	case []interface{}:
		if len(list) == 0 {
			return nil, mismatchf(`invalid "string list" value: %v`, v)
		}
		out := make([]string, 0, len(list))
		for _, elem := range list {
			s, ok := elem.(string)
			if !ok {
				return nil, mismatchf(`invalid "string list" value: %v`, v)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, mismatchf(`invalid "string list" value: %v`, v)
}
