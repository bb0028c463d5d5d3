package evaluation

// Access is the caller identity used for row-level scoping.
type Access interface {
	CanViewAllStores() bool
	StoreScope() string
}

// ScopeToSession returns the records access may see. A nil access sees
// nothing.
func ScopeToSession(records []Record, access Access) []Record {
	if access == nil {
		return []Record{}
	}
	if access.CanViewAllStores() {
		out := make([]Record, len(records))
		copy(out, records)
		return out
	}
	store := access.StoreScope()
	out := make([]Record, 0)
	if store == "" {
		return out
	}
	for _, r := range records {
		if r.Store == store {
			out = append(out, r)
		}
	}
	return out
}
