package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// TenantTagKey is the metadata key carrying the isolation tag.
// It is injected by the owning collection and never trusted from caller input.
const TenantTagKey = "tenant_id"

// Tenant and category identifiers share one alphabet that excludes the
// underscore, so the physical "{tenant}_{category}" partition name splits
// unambiguously and no tenant's prefix can shadow another's.
var identifierRe = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

const maxIdentifierLen = 64

// ValidateTenant checks a tenant identifier.
func ValidateTenant(tenant string) error {
	if err := validateIdentifier(tenant); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidTenant, tenant, err)
	}
	return nil
}

// ValidateCategory checks a category identifier.
func ValidateCategory(category string) error {
	if err := validateIdentifier(category); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCategory, category, err)
	}
	return nil
}

func validateIdentifier(s string) error {
	if s == "" {
		return fmt.Errorf("empty")
	}
	if len(s) > maxIdentifierLen {
		return fmt.Errorf("longer than %d characters", maxIdentifierLen)
	}
	if !identifierRe.MatchString(s) {
		return fmt.Errorf("must match %s", identifierRe.String())
	}
	return nil
}

// CollectionName derives the physical partition name for a tenant/category pair.
func CollectionName(tenant, category string) string {
	return tenant + "_" + category
}

// SplitCollectionName reverses CollectionName. The identifier alphabet has no
// underscore, so the first underscore is always the separator.
func SplitCollectionName(name string) (tenant, category string, ok bool) {
	tenant, category, ok = strings.Cut(name, "_")
	if !ok || tenant == "" || category == "" {
		return "", "", false
	}
	return tenant, category, true
}
