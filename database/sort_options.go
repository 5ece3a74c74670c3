package database

// Catalog listing orders accepted by the API's sort parameter.
const (
	SortPathAsc     = "path_asc"
	SortPathNat     = "path_nat"
	SortCreatedDesc = "created_desc"
	SortCreatedAsc  = "created_asc"
)

const DefaultSortOrder = SortPathAsc

// IsValidSortOrder checks if a string is a valid sort order constant
func IsValidSortOrder(order string) bool {
	switch order {
	case SortPathAsc, SortPathNat, SortCreatedDesc, SortCreatedAsc:
		return true
	default:
		return false
	}
}

// renderOrder keeps the renders of one acquisition in sequence order.
const renderOrder = "h.sequence_no ASC, h.id ASC, f.sequence_no ASC, f.id ASC"

// CatalogOrderClause is the ORDER BY for the acquisition ⟕ HD ⟕ EF join
// (aliases a, h, f). Natural ordering cannot be expressed in SQLite, so
// SortPathNat orders by path here and the caller re-sorts.
func CatalogOrderClause(order string) string {
	switch order {
	case SortCreatedDesc:
		return "a.created_at DESC, a.path ASC, a.id ASC, " + renderOrder
	case SortCreatedAsc:
		return "a.created_at ASC, a.path ASC, a.id ASC, " + renderOrder
	default:
		return "a.path ASC, a.id ASC, " + renderOrder
	}
}
