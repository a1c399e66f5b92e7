package utils

import (
	"strconv"
)

// StringToInt converts string to int, returns 0 if error
func StringToInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

// ParseID parses a decimal entity id from a path or form value.
func ParseID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
