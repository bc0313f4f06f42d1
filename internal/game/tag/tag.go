// Package tag provides hierarchical, dot-separated tag values and exact-match
// tag sets used for NPC roles, capabilities, constraints, and interaction intents.
package tag

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Tag is a namespaced identifier such as "NPC.Intent.Talk".
//
// Tags are compared by exact string equality. The dotted form is a naming
// convention only; "NPC.Intent" never matches "NPC.Intent.Talk".
type Tag string

// None is the empty, invalid tag.
const None Tag = ""

// IsValid reports whether t is structurally valid: non-empty, free of
// whitespace, and without empty dot-separated segments.
func (t Tag) IsValid() bool {
	if t == None {
		return false
	}
	for _, seg := range strings.Split(string(t), ".") {
		if seg == "" {
			return false
		}
		if strings.IndexFunc(seg, unicode.IsSpace) >= 0 {
			return false
		}
	}
	return true
}

// String returns the tag text.
func (t Tag) String() string {
	return string(t)
}

// UnmarshalYAML decodes a scalar tag and rejects malformed values.
// An empty scalar decodes to None.
func (t *Tag) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("decoding tag: %w", err)
	}
	parsed := Tag(s)
	if parsed != None && !parsed.IsValid() {
		return fmt.Errorf("line %d: invalid tag %q", value.Line, s)
	}
	*t = parsed
	return nil
}

// Set is an unordered collection of unique tags.
//
// The zero value is an empty set. A Set is not safe for concurrent mutation;
// sets held by a loaded definition are never mutated.
type Set struct {
	tags map[Tag]struct{}
}

// NewSet builds a set from tags. Duplicates collapse.
//
// Precondition: every tag should satisfy IsValid; invalid tags are kept as-is
// and simply never match a valid query.
func NewSet(tags ...Tag) Set {
	s := Set{tags: make(map[Tag]struct{}, len(tags))}
	for _, t := range tags {
		s.tags[t] = struct{}{}
	}
	return s
}

// ParseSet converts strings into a Set.
//
// Postcondition: Returns an error naming the first invalid tag.
func ParseSet(values []string) (Set, error) {
	s := Set{tags: make(map[Tag]struct{}, len(values))}
	for _, v := range values {
		t := Tag(v)
		if !t.IsValid() {
			return Set{}, fmt.Errorf("invalid tag %q", v)
		}
		s.tags[t] = struct{}{}
	}
	return s, nil
}

// Has reports whether t is an exact member of s.
func (s Set) Has(t Tag) bool {
	_, ok := s.tags[t]
	return ok
}

// HasAll reports whether every member of query is in s.
//
// Postcondition: Returns false when query is empty.
func (s Set) HasAll(query Set) bool {
	if query.IsEmpty() {
		return false
	}
	for t := range query.tags {
		if !s.Has(t) {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one member of query is in s.
//
// Postcondition: Returns false when query is empty.
func (s Set) HasAny(query Set) bool {
	for t := range query.tags {
		if s.Has(t) {
			return true
		}
	}
	return false
}

// IsEmpty reports whether s has no members.
func (s Set) IsEmpty() bool {
	return len(s.tags) == 0
}

// Len returns the number of members.
func (s Set) Len() int {
	return len(s.tags)
}

// Tags returns the members sorted lexicographically.
//
// Postcondition: Returns a non-nil slice owned by the caller.
func (s Set) Tags() []Tag {
	out := make([]Tag, 0, len(s.tags))
	for t := range s.tags {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the members as sorted strings.
func (s Set) Strings() []string {
	tags := s.Tags()
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}

// String renders the set as "{A, B}".
func (s Set) String() string {
	return "{" + strings.Join(s.Strings(), ", ") + "}"
}

// UnmarshalYAML decodes a YAML sequence of tag strings.
func (s *Set) UnmarshalYAML(value *yaml.Node) error {
	var values []string
	if err := value.Decode(&values); err != nil {
		return fmt.Errorf("decoding tag set: %w", err)
	}
	parsed, err := ParseSet(values)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*s = parsed
	return nil
}

// MarshalYAML encodes the set as a sorted sequence.
func (s Set) MarshalYAML() (interface{}, error) {
	return s.Strings(), nil
}
