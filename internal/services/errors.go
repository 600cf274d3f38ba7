// internal/services/errors.go
package services

import (
	"errors"
	"fmt"
)

// DuplicateProductError reports a create call for a canonical URL that
// already has a record. It is distinguished from every other store fault so
// callers can treat the race between two scrapers as routine.
type DuplicateProductError struct {
	StoreProductURL string
}

func (e *DuplicateProductError) Error() string {
	return fmt.Sprintf("product with url %q already exists", e.StoreProductURL)
}

// IsDuplicateProduct reports whether err is a duplicate-create rejection.
func IsDuplicateProduct(err error) bool {
	var dupErr *DuplicateProductError
	return errors.As(err, &dupErr)
}

// NotFoundError reports an update targeting a canonical URL with no record.
type NotFoundError struct {
	StoreProductURL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product with url %q does not yet exist", e.StoreProductURL)
}

// IsNotFound reports whether err is a missing-product rejection.
func IsNotFound(err error) bool {
	var nfErr *NotFoundError
	return errors.As(err, &nfErr)
}
