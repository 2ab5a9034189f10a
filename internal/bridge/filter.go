package bridge

import "slices"

// NodeFilter is an allow-list of node short names. The zero value allows
// every node.
type NodeFilter struct {
	allowed map[string]struct{}
}

// NewNodeFilter builds a filter from short names. Matching is exact and
// case-sensitive.
func NewNodeFilter(shortNames []string) NodeFilter {
	if len(shortNames) == 0 {
		return NodeFilter{}
	}

	allowed := make(map[string]struct{}, len(shortNames))
	for _, name := range shortNames {
		allowed[name] = struct{}{}
	}
	return NodeFilter{allowed: allowed}
}

// Allows reports whether packets from the node may be published.
func (f NodeFilter) Allows(shortName string) bool {
	if len(f.allowed) == 0 {
		return true
	}
	_, ok := f.allowed[shortName]
	return ok
}

// Names returns the allow-list, sorted, or nil when every node is allowed.
func (f NodeFilter) Names() []string {
	if len(f.allowed) == 0 {
		return nil
	}
	names := make([]string, 0, len(f.allowed))
	for name := range f.allowed {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
