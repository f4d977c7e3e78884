package r8econf_test

import (
	"slices"
	"testing"

	"github.com/byte4ever/r8econf"
)

func TestAttributesPreserveInsertionOrder(t *testing.T) {
	a := r8econf.NewAttributes("b", "1", "a", "2", "c", "3")

	if got := a.Keys(); !slices.Equal(got, []string{"b", "a", "c"}) {
		t.Fatalf("Keys() = %v, want [b a c]", got)
	}
}

func TestAttributesSetKeepsFirstPosition(t *testing.T) {
	a := r8econf.NewAttributes("x", "1", "y", "2")
	a.Set("x", "3")

	if got := a.Keys(); !slices.Equal(got, []string{"x", "y"}) {
		t.Fatalf("Keys() = %v, want [x y]", got)
	}
	if got := a.Get("x"); got != "3" {
		t.Fatalf("Get(x) = %q, want %q", got, "3")
	}
}

func TestAttributesZeroValueIsUsable(t *testing.T) {
	var a r8econf.Attributes

	if a.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", a.Len())
	}
	if _, ok := a.Lookup("missing"); ok {
		t.Fatal("Lookup(missing) ok = true, want false")
	}

	a.Set("k", "v")
	if got := a.Get("k"); got != "v" {
		t.Fatalf("Get(k) = %q, want %q", got, "v")
	}
}

func TestAttributesLookupDistinguishesEmpty(t *testing.T) {
	a := r8econf.NewAttributes("empty")

	v, ok := a.Lookup("empty")
	if !ok || v != "" {
		t.Fatalf("Lookup(empty) = (%q, %v), want (\"\", true)", v, ok)
	}
}

func TestAttributesAllIteratesInOrder(t *testing.T) {
	a := r8econf.NewAttributes("one", "1", "two", "2")

	var got []string
	for k, v := range a.All() {
		got = append(got, k+"="+v)
	}

	if !slices.Equal(got, []string{"one=1", "two=2"}) {
		t.Fatalf("All() = %v, want [one=1 two=2]", got)
	}
}

func TestAttributesCloneIsIndependent(t *testing.T) {
	a := r8econf.NewAttributes("k", "v")
	c := a.Clone()
	c.Set("k", "changed")
	c.Set("new", "x")

	if a.Get("k") != "v" || a.Len() != 1 {
		t.Fatalf("original mutated: k=%q len=%d", a.Get("k"), a.Len())
	}
	if c.Map()["k"] != "changed" {
		t.Fatalf("clone Map()[k] = %q, want %q", c.Map()["k"], "changed")
	}
}
