// Package selection tracks multi-select state across list views. Files and
// folders are deleted through different operations, so members are keyed by
// kind as well as id.
package selection

import "sort"

type Kind string

const (
	KindNote   Kind = "note"
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

type member struct {
	kind Kind
	id   string
}

// Set is a selection of (kind, id) pairs with an explicit selection-mode
// flag. It only tracks identifiers; clearing it never touches the items
// themselves.
type Set struct {
	active  bool
	members map[member]struct{}
}

func NewSet() *Set {
	return &Set{members: make(map[member]struct{})}
}

// EnterMode switches selection mode on. Idempotent.
func (s *Set) EnterMode() {
	s.active = true
}

// ExitMode switches selection mode off and drops every selected id.
func (s *Set) ExitMode() {
	s.active = false
	s.members = make(map[member]struct{})
}

func (s *Set) InMode() bool {
	return s.active
}

// Toggle adds the pair if absent, removes it if present.
func (s *Set) Toggle(kind Kind, id string) {
	m := member{kind: kind, id: id}
	if _, ok := s.members[m]; ok {
		delete(s.members, m)
		return
	}
	s.members[m] = struct{}{}
}

func (s *Set) Contains(kind Kind, id string) bool {
	_, ok := s.members[member{kind: kind, id: id}]
	return ok
}

func (s *Set) Len() int {
	return len(s.members)
}

func (s *Set) Clear() {
	s.members = make(map[member]struct{})
}

// IDs returns the selected ids of one kind, sorted for deterministic fan-out
// ordering.
func (s *Set) IDs(kind Kind) []string {
	ids := make([]string, 0)
	for m := range s.members {
		if m.kind == kind {
			ids = append(ids, m.id)
		}
	}
	sort.Strings(ids)
	return ids
}
