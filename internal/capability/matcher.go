package capability

import (
	"strings"
)

// matchObjectFields evaluates an objectNode's fields against a candidate
// object. A "**" field key means "somewhere in this subtree there exists a
// match for the nested pattern" (deep search); a field key starting with
// "$." is an absolute JSONPath-style key, evaluated against the root value
// rather than the current object — handled by Match (via matchNode), not
// here.
func matchObjectFields(n objectNode, candidate map[string]any) bool {
	for key, sub := range n.fields {
		if key == "**" {
			if !matchesSomewhere(sub, candidate) {
				return false
			}
			continue
		}
		if strings.HasPrefix(key, "$.") {
			// Absolute paths are resolved against the envelope root by
			// matchNode; plain matchObjectFields treats them as a
			// literal (and effectively unmatched) key, so callers needing
			// JSONPath semantics must go through Match/Allows below.
			v, ok := candidate[key]
			if !ok {
				return false
			}
			if !sub.match(v) {
				return false
			}
			continue
		}
		v, ok := candidate[key]
		if !ok {
			if _, isNeg := sub.(negatedNode); isNeg {
				continue
			}
			return false
		}
		if !sub.match(v) {
			return false
		}
	}
	return true
}

// matchesSomewhere performs a depth-first search of value (and its nested
// objects/arrays) for any subtree that matches pattern.
func matchesSomewhere(pattern node, value any) bool {
	if pattern.match(value) {
		return true
	}
	switch v := value.(type) {
	case map[string]any:
		for _, child := range v {
			if matchesSomewhere(pattern, child) {
				return true
			}
		}
	case []any:
		for _, child := range v {
			if matchesSomewhere(pattern, child) {
				return true
			}
		}
	}
	return false
}

// Match evaluates a compiled capability entry against an envelope
// represented as a generic JSON value (root). Absolute "$."-prefixed keys
// anywhere in the pattern tree are resolved against root.
func Match(e Entry, root map[string]any) bool {
	return matchNode(e.compiled, root, root)
}

func matchNode(n node, value any, root map[string]any) bool {
	obj, ok := n.(objectNode)
	if !ok {
		return n.match(value)
	}
	m, ok := value.(map[string]any)
	if !ok {
		return false
	}
	for key, sub := range obj.fields {
		switch {
		case key == "**":
			if !matchesSomewhereWithRoot(sub, m, root) {
				return false
			}
		case strings.HasPrefix(key, "$."):
			v, ok := resolveJSONPath(root, key)
			if !ok {
				return false
			}
			if !matchNode(sub, v, root) {
				return false
			}
		default:
			v, present := m[key]
			if !present {
				if _, isNeg := sub.(negatedNode); isNeg {
					continue
				}
				return false
			}
			if !matchNode(sub, v, root) {
				return false
			}
		}
	}
	return true
}

func matchesSomewhereWithRoot(pattern node, value any, root map[string]any) bool {
	if matchNode(pattern, value, root) {
		return true
	}
	switch v := value.(type) {
	case map[string]any:
		for _, child := range v {
			if matchesSomewhereWithRoot(pattern, child, root) {
				return true
			}
		}
	case []any:
		for _, child := range v {
			if matchesSomewhereWithRoot(pattern, child, root) {
				return true
			}
		}
	}
	return false
}

// resolveJSONPath resolves a minimal dot-path of the form "$.a.b.c" against
// root. Array indexing is not supported, matching the subset of JSONPath
// the spec's capability patterns require.
func resolveJSONPath(root map[string]any, path string) (any, bool) {
	path = strings.TrimPrefix(path, "$.")
	if path == "" {
		return root, true
	}
	segs := strings.Split(path, ".")
	var cur any = root
	for _, seg := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Set is an ordered collection of capability entries granted to a
// participant. Allows implements "any positive match grants, any negative
// match denies, denial takes precedence" per the protocol's negation rule.
type Set struct {
	entries []Entry
}

// NewSet compiles a list of raw capability strings into a Set.
func NewSet(raw []string) (Set, error) {
	entries := make([]Entry, 0, len(raw))
	for _, r := range raw {
		e, err := ParseEntry(r)
		if err != nil {
			return Set{}, err
		}
		entries = append(entries, e)
	}
	return Set{entries: entries}, nil
}

// Entries returns the set's compiled entries.
func (s Set) Entries() []Entry { return s.entries }

// Allows reports whether root (a generic JSON object, typically the
// envelope being checked) is permitted by this capability set: at least
// one non-negative entry matches, and no negative entry matches.
func (s Set) Allows(root map[string]any) bool {
	allowed := false
	for _, e := range s.entries {
		if Match(e, root) {
			if e.Negative {
				return false
			}
			allowed = true
		}
	}
	return allowed
}
