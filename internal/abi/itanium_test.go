package abi

import (
	"testing"

	"kiln/internal/hier"
)

func TestArrayCookieSize(t *testing.T) {
	rules := NewItanium(8)
	if got := rules.ArrayCookieSize(4, false); got != 0 {
		t.Fatalf("trivially destructible elements need no cookie, got %d", got)
	}
	if got := rules.ArrayCookieSize(4, true); got != 8 {
		t.Fatalf("cookie must be at least pointer-sized, got %d", got)
	}
	if got := rules.ArrayCookieSize(16, true); got != 16 {
		t.Fatalf("over-aligned elements widen the cookie, got %d", got)
	}
}

func TestNeedsVTT(t *testing.T) {
	rules := NewItanium(8)
	in := hier.NewInterner()
	v, err := in.AddClass(hier.Class{Name: "V"})
	if err != nil {
		t.Fatal(err)
	}
	plain, err := in.AddClass(hier.Class{Name: "Plain", Bases: []hier.BaseSpec{{Type: v}}})
	if err != nil {
		t.Fatal(err)
	}
	diamondy, err := in.AddClass(hier.Class{Name: "WithVBase", Bases: []hier.BaseSpec{{Type: v, Virtual: true}}})
	if err != nil {
		t.Fatal(err)
	}
	if rules.NeedsVTT(in, plain) {
		t.Fatal("no virtual bases, no VTT")
	}
	if !rules.NeedsVTT(in, diamondy) {
		t.Fatal("virtual bases require a VTT")
	}
}
