package config

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// MaxExpansionDepth bounds how many times expanded transforms may expand
// again. Deeper chains are treated as a configuration error.
const MaxExpansionDepth = 8

// expandMacros replaces every expanding transform with its children until no
// transform expands any more. Children are named "<parent>.<child>" and
// inherit the parent's inputs. The returned expansions map each expanded
// name, including intermediate ones, to the leaf transforms it became.
func expandMacros(in *orderedmap.OrderedMap[string, *TransformOuter]) (
	*orderedmap.OrderedMap[string, *TransformOuter],
	*orderedmap.OrderedMap[string, []string],
	Errors,
) {
	current := orderedmap.New[string, *TransformOuter]()
	for pair := in.Oldest(); pair != nil; pair = pair.Next() {
		current.Set(pair.Key, pair.Value)
	}
	expansions := orderedmap.New[string, []string]()
	settled := map[string]bool{}

	for depth := 0; ; depth++ {
		var errs Errors
		expanded := false
		next := orderedmap.New[string, *TransformOuter]()

		for pair := current.Oldest(); pair != nil; pair = pair.Next() {
			name, outer := pair.Key, pair.Value
			expander, ok := outer.TransformConfig.(Expander)
			if !ok || settled[name] {
				next.Set(name, outer)
				continue
			}
			children, err := expander.Expand()
			if err != nil {
				errs = append(errs, fmt.Sprintf("transform %q: %v", name, err))
				continue
			}
			if children == nil {
				settled[name] = true
				next.Set(name, outer)
				continue
			}
			if depth >= MaxExpansionDepth {
				errs = append(errs, fmt.Sprintf("transform %q exceeds the maximum expansion depth of %d", name, MaxExpansionDepth))
				continue
			}

			expanded = true
			names := make([]string, 0, children.Len())
			for child := children.Oldest(); child != nil; child = child.Next() {
				full := name + "." + child.Key
				_, inCurrent := current.Get(full)
				_, inNext := next.Get(full)
				if inCurrent || inNext {
					errs = append(errs, fmt.Sprintf("expanded transform name %q collides with an existing transform", full))
					continue
				}
				next.Set(full, &TransformOuter{
					Inputs:          append([]string(nil), outer.Inputs...),
					TransformConfig: child.Value,
				})
				names = append(names, full)
			}
			expansions.Set(name, names)
		}

		if len(errs) > 0 {
			return next, flattenExpansions(expansions), errs
		}
		current = next
		if !expanded {
			return current, flattenExpansions(expansions), nil
		}
	}
}

// flattenExpansions resolves every recorded expansion down to transforms
// that did not expand.
func flattenExpansions(expansions *orderedmap.OrderedMap[string, []string]) *orderedmap.OrderedMap[string, []string] {
	var leaves func(name string) []string
	leaves = func(name string) []string {
		children, ok := expansions.Get(name)
		if !ok {
			return []string{name}
		}
		var out []string
		for _, child := range children {
			out = append(out, leaves(child)...)
		}
		return out
	}

	flat := orderedmap.New[string, []string]()
	for pair := expansions.Oldest(); pair != nil; pair = pair.Next() {
		flat.Set(pair.Key, leaves(pair.Key))
	}
	return flat
}
