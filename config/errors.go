package config

import (
	"fmt"
	"strings"
)

// Errors is a list of configuration diagnostics reported together, in the
// order they were found.
type Errors []string

func (e Errors) Error() string {
	return strings.Join(e, "\n")
}

func (e Errors) err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

type UnknownComponentError struct {
	Category Category
	Tag      string
}

func (e *UnknownComponentError) Error() string {
	return fmt.Sprintf("unknown component type %q for %s", e.Tag, e.Category)
}
