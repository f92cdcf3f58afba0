package schema

import (
	"fmt"
	"strings"
)

// EnumSchema admits a fixed set of string members. A case-insensitive enum
// stores a lowercased lookup index alongside the canonical members so that
// wire values differing only in case still resolve to the declared form.
type EnumSchema struct {
	members         []string
	caseInsensitive bool
	lower           map[string]string // lowercase -> canonical, only set when caseInsensitive
}

// Enum declares a case-sensitive enum: only an exact match against one of
// values is accepted.
func Enum(values ...string) *EnumSchema {
	return &EnumSchema{members: append([]string(nil), values...)}
}

// CaseInsensitiveEnum declares an enum whose membership test and parse are
// case-insensitive; parse always returns the canonical (declared-case) form.
// Construction panics if two members collapse under lowercasing — this is
// an InvariantViolation surfaced at declaration time since enum literals are
// always known at compile time, not lazily.
func CaseInsensitiveEnum(values ...string) *EnumSchema {
	lower := make(map[string]string, len(values))
	for _, v := range values {
		lv := strings.ToLower(v)
		if existing, ok := lower[lv]; ok {
			panic(fmt.Sprintf("schema: case-insensitive enum members %q and %q collapse to the same value", existing, v))
		}
		lower[lv] = v
	}
	return &EnumSchema{
		members:         append([]string(nil), values...),
		caseInsensitive: true,
		lower:           lower,
	}
}

func (e *EnumSchema) Kind() Kind { return KindEnum }

// TypeString renders e.g. `"Active" | "Inactive" | "Pending"`.
func (e *EnumSchema) TypeString() string {
	parts := make([]string, len(e.members))
	for i, m := range e.members {
		parts[i] = fmt.Sprintf("%q", m)
	}
	return strings.Join(parts, " | ")
}

// Has reports whether raw is a member, and returns its canonical form.
// For a case-sensitive enum, canonical == raw on success.
func (e *EnumSchema) Has(raw string) (canonical string, ok bool) {
	if e.caseInsensitive {
		canonical, ok = e.lower[strings.ToLower(raw)]
		return canonical, ok
	}
	for _, m := range e.members {
		if m == raw {
			return m, true
		}
	}
	return "", false
}

// Members returns the declared members in declaration order.
func (e *EnumSchema) Members() []string { return append([]string(nil), e.members...) }

// CaseInsensitive reports whether e was built with CaseInsensitiveEnum.
func (e *EnumSchema) CaseInsensitive() bool { return e.caseInsensitive }
