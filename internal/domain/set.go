package domain

import (
	"encoding/json"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"gopkg.in/yaml.v3"
)

// Set is a string set for multi-select fields. The zero value is an empty set.
// Copying a Set shares its storage; use Clone for an independent copy.
type Set struct {
	items mapset.Set[string]
}

func NewSet(values ...string) Set {
	var s Set
	for _, v := range values {
		s.Add(v)
	}
	return s
}

func (s *Set) init() {
	if s.items == nil {
		s.items = mapset.NewThreadUnsafeSet[string]()
	}
}

// Add inserts a trimmed, non-empty value and reports whether it was new.
func (s *Set) Add(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	s.init()
	return s.items.Add(v)
}

func (s *Set) Remove(v string) {
	if s.items != nil {
		s.items.Remove(strings.TrimSpace(v))
	}
}

func (s Set) Contains(v string) bool {
	return s.items != nil && s.items.Contains(strings.TrimSpace(v))
}

// Toggle flips membership of v and returns whether v is now present.
func (s *Set) Toggle(v string) bool {
	if s.Contains(v) {
		s.Remove(v)
		return false
	}
	return s.Add(v)
}

func (s Set) Len() int {
	if s.items == nil {
		return 0
	}
	return s.items.Cardinality()
}

// Values returns the members sorted, never nil.
func (s Set) Values() []string {
	if s.items == nil {
		return []string{}
	}
	out := s.items.ToSlice()
	sort.Strings(out)
	return out
}

func (s Set) Clone() Set {
	return NewSet(s.Values()...)
}

func (s Set) Equal(o Set) bool {
	if s.Len() != o.Len() {
		return false
	}
	for _, v := range s.Values() {
		if !o.Contains(v) {
			return false
		}
	}
	return true
}

func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Values())
}

func (s *Set) UnmarshalJSON(b []byte) error {
	var vals []string
	if err := json.Unmarshal(b, &vals); err != nil {
		return err
	}
	*s = NewSet(vals...)
	return nil
}

func (s Set) MarshalYAML() (any, error) {
	return s.Values(), nil
}

func (s *Set) UnmarshalYAML(node *yaml.Node) error {
	var vals []string
	if err := node.Decode(&vals); err != nil {
		return err
	}
	*s = NewSet(vals...)
	return nil
}
