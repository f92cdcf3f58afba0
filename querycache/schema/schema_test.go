package schema_test

import (
	"strings"
	"testing"

	"github.com/shashiranjanraj/qcache/querycache/schema"
)

func TestCaseInsensitiveEnumCanonicalizes(t *testing.T) {
	status := schema.CaseInsensitiveEnum("Active", "Inactive", "Pending")

	canon, ok := status.Has("PENDING")
	if !ok || canon != "Pending" {
		t.Fatalf("Has(PENDING) = %q, %v; want Pending, true", canon, ok)
	}

	if _, ok := status.Has("invalid"); ok {
		t.Fatalf("Has(invalid) = true; want false")
	}

	want := `"Active" | "Inactive" | "Pending"`
	if got := status.TypeString(); got != want {
		t.Fatalf("TypeString() = %q; want %q", got, want)
	}
}

func TestCaseInsensitiveEnumRejectsCollapsingMembers(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on colliding enum members")
		}
	}()
	schema.CaseInsensitiveEnum("Active", "active")
}

func TestExactEnumIsCaseSensitive(t *testing.T) {
	status := schema.Enum("Active", "Inactive")
	if _, ok := status.Has("ACTIVE"); ok {
		t.Fatal("exact enum should not match on case")
	}
	if _, ok := status.Has("Active"); !ok {
		t.Fatal("exact enum should match exact case")
	}
}

func TestExtendRejectsFieldCollision(t *testing.T) {
	base := schema.Object(func() schema.Fields {
		return schema.Fields{"name": schema.String()}
	})
	extended := schema.Extend(base, func() schema.Fields {
		return schema.Fields{"name": schema.Number()}
	})

	err := extended.Reify()
	if err == nil {
		t.Fatal("expected collision error")
	}
	if !strings.Contains(err.Error(), "Cannot extend: field 'name' already exists") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEntityRejectsReservedFieldNames(t *testing.T) {
	user := schema.Entity("User", func() schema.Fields {
		return schema.Fields{"id": schema.String()}
	})
	if err := user.Reify(); err == nil {
		t.Fatal("expected reservation error for 'id'")
	}
}

func TestShapeKeyIsolatesDifferentShapes(t *testing.T) {
	v1 := schema.Entity("User", func() schema.Fields {
		return schema.Fields{"name": schema.String()}
	})
	v2 := schema.Entity("User", func() schema.Fields {
		return schema.Fields{"name": schema.String(), "email": schema.String()}
	})

	k1, err := v1.ShapeKey()
	if err != nil {
		t.Fatal(err)
	}
	k2, err := v2.ShapeKey()
	if err != nil {
		t.Fatal(err)
	}
	if k1 == k2 {
		t.Fatal("shape keys should differ when fields differ")
	}
}

func TestShapeKeyStableAcrossCalls(t *testing.T) {
	user := schema.Entity("User", func() schema.Fields {
		return schema.Fields{"name": schema.String()}
	})
	k1, _ := user.ShapeKey()
	k2, _ := user.ShapeKey()
	if k1 != k2 {
		t.Fatal("shape key must be stable across repeated calls")
	}
}

func TestSelfReferencingEntityShapeKeyTerminates(t *testing.T) {
	var user *schema.EntitySchema
	user = schema.Entity("User", func() schema.Fields {
		return schema.Fields{
			"name":    schema.String(),
			"friends": schema.Array(user),
		}
	})

	if _, err := user.ShapeKey(); err != nil {
		t.Fatal(err)
	}
}

func TestUnionDispatchesByTypename(t *testing.T) {
	dog := schema.Entity("Dog", func() schema.Fields { return schema.Fields{"breed": schema.String()} })
	cat := schema.Entity("Cat", func() schema.Fields { return schema.Fields{"indoor": schema.Bool()} })

	pet := schema.Union(map[string]schema.Schema{"Dog": dog, "Cat": cat})

	if _, ok := pet.Variant("Dog"); !ok {
		t.Fatal("expected Dog variant")
	}
	if _, ok := pet.Variant("Fish"); ok {
		t.Fatal("unexpected Fish variant")
	}
}

func TestOptionalNullableUnwrap(t *testing.T) {
	s := schema.Nullable(schema.Optional(schema.String()))
	inner, optional, nullable := schema.Unwrap(s)
	if inner.Kind() != schema.KindString || !optional || !nullable {
		t.Fatalf("unwrap mismatch: kind=%v optional=%v nullable=%v", inner.Kind(), optional, nullable)
	}
}
