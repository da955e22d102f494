package shared

// ClampLimit applies the default when limit is unset and caps it at max.
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
