package schema

import (
	"sort"
	"strings"
)

// UnionSchema dispatches by the incoming __typename to one of several
// entity/object variants. An unlisted __typename fails the parse for that
// element (filtered in an array, propagated otherwise).
type UnionSchema struct {
	variants map[string]Schema
}

// Union declares a typename-dispatched union over variants, keyed by the
// __typename each variant is selected for.
func Union(variants map[string]Schema) *UnionSchema {
	copyVariants := make(map[string]Schema, len(variants))
	for k, v := range variants {
		copyVariants[k] = v
	}
	return &UnionSchema{variants: copyVariants}
}

func (u *UnionSchema) Kind() Kind { return KindUnion }

func (u *UnionSchema) TypeString() string {
	names := make([]string, 0, len(u.variants))
	for n := range u.variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, " | ")
}

// Variant returns the schema declared for typename, and whether it exists.
func (u *UnionSchema) Variant(typename string) (Schema, bool) {
	s, ok := u.variants[typename]
	return s, ok
}

// Variants returns the typename -> schema table.
func (u *UnionSchema) Variants() map[string]Schema { return u.variants }
