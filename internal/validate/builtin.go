package validate

import (
	"fmt"
	"sort"
)

// Func is a named Go predicate usable as a custom validator.
type Func func(fields map[string]any) error

// defaultBuiltins are registered with every CUE validator.
var defaultBuiltins = map[string]Func{
	"nonempty": nonEmpty,
	"flat":     flat,
}

// nonEmpty requires at least one caller-defined field.
func nonEmpty(fields map[string]any) error {
	if len(fields) == 0 {
		return fmt.Errorf("document has no fields")
	}
	return nil
}

// flat rejects nested objects and arrays.
func flat(fields map[string]any) error {
	var nested []string
	for k, v := range fields {
		switch v.(type) {
		case map[string]any, []any:
			nested = append(nested, k)
		}
	}
	if len(nested) > 0 {
		sort.Strings(nested)
		return fmt.Errorf("fields %v are not scalar", nested)
	}
	return nil
}
