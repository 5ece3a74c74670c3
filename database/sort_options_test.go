package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortOrders(t *testing.T) {
	for _, order := range []string{SortPathAsc, SortPathNat, SortCreatedDesc, SortCreatedAsc} {
		assert.True(t, IsValidSortOrder(order), order)
	}
	assert.False(t, IsValidSortOrder("size_desc"))
	assert.False(t, IsValidSortOrder(""))

	assert.True(t, strings.HasPrefix(CatalogOrderClause(SortCreatedDesc), "a.created_at DESC"))
	assert.True(t, strings.HasPrefix(CatalogOrderClause(SortPathNat), "a.path ASC"))
	assert.Equal(t, CatalogOrderClause(DefaultSortOrder), CatalogOrderClause(""))
}
