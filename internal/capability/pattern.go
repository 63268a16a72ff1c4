// Package capability implements MEW's structural capability pattern
// matching: JSON-template patterns with wildcards, negation, regex,
// array one-of and JSONPath-style absolute keys, compiled once and
// evaluated against candidate envelopes.
package capability

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Entry is one capability grant: a pattern plus whether it is a deny-rule.
// A raw capability string beginning with "!" is a whole-entry negation —
// a match against it denies the envelope outright, taking precedence over
// any allow match (see Matcher.Allows).
type Entry struct {
	Negative bool
	Raw      string
	compiled node
}

// ParseEntry compiles a single capability definition, which is either a
// bare kind shorthand ("chat"), a kind/subkind shorthand ("mcp/request"),
// or a full JSON pattern object or array.
func ParseEntry(raw string) (Entry, error) {
	e := Entry{Raw: raw}
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "!") {
		e.Negative = true
		s = strings.TrimSpace(s[1:])
	}
	n, err := compileShorthandOrJSON(s)
	if err != nil {
		return Entry{}, fmt.Errorf("capability: parse %q: %w", raw, err)
	}
	e.compiled = n
	return e, nil
}

// compileShorthandOrJSON accepts either a bare kind string like "chat" or
// "mcp/*" (expanded to {"kind": <that pattern>}), or a JSON object or array
// (input starting with '{' or '[') describing a full structural pattern.
func compileShorthandOrJSON(s string) (node, error) {
	if s == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	if looksLikeJSON(s) {
		var raw any
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			return nil, err
		}
		return compileValue(raw)
	}
	// Shorthand: a bare kind pattern, matched against the envelope's "kind"
	// field only.
	kindNode, err := compileScalarOrGlob(s)
	if err != nil {
		return nil, err
	}
	return objectNode{fields: map[string]node{"kind": kindNode}}, nil
}

func looksLikeJSON(s string) bool {
	if s == "" {
		return false
	}
	switch s[0] {
	case '{', '[':
		return true
	}
	return false
}

// node is a compiled pattern fragment.
type node interface {
	match(value any) bool
}

// scalarNode matches an exact value (string, number, bool, null).
type scalarNode struct{ want any }

func (n scalarNode) match(v any) bool { return valueEqual(n.want, v) }

// globNode matches strings using "*" (any run) and "**" (any run including
// path separators / nested structure boundary); for scalar string matching
// both behave the same. The deep-search "**" object key is a separate
// mechanism, handled by matchNode in matcher.go.
type globNode struct{ pattern string }

func (n globNode) match(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return globMatch(n.pattern, s)
}

// regexNode matches strings against a compiled regular expression, written
// as "/pattern/" in the source capability.
type regexNode struct{ re *regexp.Regexp }

func (n regexNode) match(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	return n.re.MatchString(s)
}

// anyNode matches any value, used for "*" at a position expecting "present,
// any value".
type anyNode struct{}

func (anyNode) match(any) bool { return true }

// oneOfNode matches if the value equals any element of the candidate list
// (used for JSON array patterns, meaning "one of these").
type oneOfNode struct{ options []node }

func (n oneOfNode) match(v any) bool {
	for _, o := range n.options {
		if o.match(v) {
			return true
		}
	}
	return false
}

// negatedNode inverts a field-level match: "must not match inner".
type negatedNode struct{ inner node }

func (n negatedNode) match(v any) bool { return !n.inner.match(v) }

// objectNode matches a JSON object structurally: every field present in
// the pattern must match the corresponding field in the candidate value
// (fields absent from the pattern are unconstrained). A "**" key means
// "this subtree, searched at any depth, must contain a match for the
// nested pattern" and is handled in matcher.go's matchObjectFields and
// matchNode.
type objectNode struct {
	fields map[string]node
}

func (n objectNode) match(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	return matchObjectFields(n, m)
}

func compileValue(raw any) (node, error) {
	switch x := raw.(type) {
	case string:
		return compileScalarOrGlob(x)
	case map[string]any:
		return compileObject(x)
	case []any:
		opts := make([]node, 0, len(x))
		for _, item := range x {
			n, err := compileValue(item)
			if err != nil {
				return nil, err
			}
			opts = append(opts, n)
		}
		return oneOfNode{options: opts}, nil
	case nil:
		return scalarNode{want: nil}, nil
	default:
		return scalarNode{want: x}, nil
	}
}

func compileObject(m map[string]any) (node, error) {
	fields := make(map[string]node, len(m))
	for k, v := range m {
		key := k
		negated := false
		if strings.HasPrefix(key, "!") {
			negated = true
			key = strings.TrimSpace(key[1:])
		}
		n, err := compileValue(v)
		if err != nil {
			return nil, err
		}
		if negated {
			n = negatedNode{inner: n}
		}
		fields[key] = n
	}
	return objectNode{fields: fields}, nil
}

func compileScalarOrGlob(s string) (node, error) {
	if s == "*" {
		return anyNode{}, nil
	}
	if strings.HasPrefix(s, "/") && strings.HasSuffix(s, "/") && len(s) >= 2 {
		re, err := regexp.Compile(s[1 : len(s)-1])
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", s, err)
		}
		return regexNode{re: re}, nil
	}
	if strings.Contains(s, "*") {
		return globNode{pattern: s}, nil
	}
	return scalarNode{want: s}, nil
}

// globMatch implements simple "*" wildcard matching (no regex metachars
// other than "*"); "**" behaves identically to "*" at the scalar-string
// level since there is no path separator inside a single string field.
func globMatch(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for i := 1; i < len(parts)-1; i++ {
		idx := strings.Index(s, parts[i])
		if idx < 0 {
			return false
		}
		s = s[idx+len(parts[i]):]
	}
	last := parts[len(parts)-1]
	return strings.HasSuffix(s, last)
}

func valueEqual(want, got any) bool {
	switch w := want.(type) {
	case float64:
		g, ok := toFloat(got)
		return ok && g == w
	default:
		return want == got
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}
