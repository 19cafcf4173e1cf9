// Package completion implements the Tab-Completion Function Registry
// (spec §2/§3): a sorted name index over FunctionSpec values supporting
// prefix search and positional argument-type lookup, including
// repeating argument groups.
package completion

import (
	"fmt"
	"sort"
	"strings"
)

// ArgType is the coarse set of argument types a FunctionSpec's
// arguments may declare.
type ArgType string

const (
	ArgRange   ArgType = "range"
	ArgValue   ArgType = "value"
	ArgNumber  ArgType = "number"
	ArgString  ArgType = "string"
	ArgBoolean ArgType = "boolean"
	ArgAny     ArgType = "any"
)

// ArgSpec describes one positional argument of a function.
type ArgSpec struct {
	Name      string
	Type      ArgType
	Optional  bool
	Repeating bool
}

// FunctionSpec describes one completable function.
type FunctionSpec struct {
	Name        string
	Description string
	MinArgs     *int
	MaxArgs     *int
	Args        []ArgSpec
}

// DuplicateFunctionError reports a registry built with two specs
// sharing a name.
type DuplicateFunctionError struct {
	Name string
}

func (e *DuplicateFunctionError) Error() string {
	return fmt.Sprintf("completion: duplicate function %q", e.Name)
}

// Registry is a sorted, prefix-searchable index of FunctionSpecs,
// keyed by their uppercased name.
type Registry struct {
	names []string
	specs map[string]FunctionSpec
}

// NewRegistry builds a Registry from an unordered list of specs. Spec
// names are uppercased on insert, matching FunctionSpec's "name:
// uppercase" contract; a duplicate name is an error.
func NewRegistry(specs []FunctionSpec) (*Registry, error) {
	r := &Registry{specs: make(map[string]FunctionSpec, len(specs))}
	for _, spec := range specs {
		name := strings.ToUpper(spec.Name)
		if _, exists := r.specs[name]; exists {
			return nil, &DuplicateFunctionError{Name: name}
		}
		spec.Name = name
		r.specs[name] = spec
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Lookup returns the spec registered under name (case-insensitive).
func (r *Registry) Lookup(name string) (FunctionSpec, bool) {
	spec, ok := r.specs[strings.ToUpper(name)]
	return spec, ok
}

// Names returns all registered names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// CompletePrefix returns every registered name (sorted) whose name
// starts with prefix, case-insensitive. An empty prefix returns every
// name.
func (r *Registry) CompletePrefix(prefix string) []string {
	prefix = strings.ToUpper(prefix)
	lo := sort.SearchStrings(r.names, prefix)
	var out []string
	for i := lo; i < len(r.names) && strings.HasPrefix(r.names[i], prefix); i++ {
		out = append(out, r.names[i])
	}
	return out
}

// ArgTypeAt returns the declared type of the argument at position
// index (0-based) for the named function. Once the args list reaches
// a repeating arg, positions at or past it cycle through the
// remaining declared args starting at the repeating one, the way a
// variadic tail of alternating arguments completes past its last
// named slot.
func ArgTypeAt(spec FunctionSpec, index int) (ArgType, bool) {
	if index < 0 || len(spec.Args) == 0 {
		return "", false
	}
	if index < len(spec.Args) {
		return spec.Args[index].Type, true
	}

	repeatFrom := -1
	for i, a := range spec.Args {
		if a.Repeating {
			repeatFrom = i
			break
		}
	}
	if repeatFrom == -1 {
		return "", false
	}

	groupLen := len(spec.Args) - repeatFrom
	offset := (index - repeatFrom) % groupLen
	return spec.Args[repeatFrom+offset].Type, true
}
