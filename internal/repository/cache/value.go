// Package cache provides the key-value backends behind rate.Store.
// Both backends are add-if-absent: the first value written for a key is kept.
package cache

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrUnsupportedValue is returned when a value is neither a string nor a bool.
var ErrUnsupportedValue = errors.New("unsupported cache value")

const (
	kindString = "string"
	kindBool   = "bool"
)

func encode(value any) (text, kind string, err error) {
	switch v := value.(type) {
	case string:
		return v, kindString, nil
	case bool:
		return strconv.FormatBool(v), kindBool, nil
	default:
		return "", "", fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}
}

func decode(text, kind string) (any, error) {
	switch kind {
	case kindString:
		return text, nil
	case kindBool:
		return strconv.ParseBool(text)
	default:
		return nil, fmt.Errorf("%w: stored kind %q", ErrUnsupportedValue, kind)
	}
}
