package utils

// ToStringSlice keeps the string members of a decoded JSON array.
func ToStringSlice(slice []any) []string {
	stringSlice := make([]string, 0)
	for _, v := range slice {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}

// FirstString returns the first message held by a decoded JSON value that is
// either a string or an array of strings.
func FirstString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case []any:
		if s := ToStringSlice(value); len(s) > 0 {
			return s[0]
		}
	}
	return ""
}
