package ui

import (
	"strings"
	"testing"

	"mc-resource-manager/resource"
)

func TestColorizeKeepsText(t *testing.T) {
	out := Colorize("sodium", 0x8bc34a)
	if !strings.Contains(out, "sodium") {
		t.Errorf("Colorize dropped text: %q", out)
	}
}

func TestDomainColor(t *testing.T) {
	seen := map[int]resource.Domain{}
	for _, d := range resource.Domains {
		c := DomainColor(d)
		if other, dup := seen[c]; dup {
			t.Errorf("domains %s and %s share color %06x", d, other, c)
		}
		seen[c] = d
		if !strings.Contains(Domain(d), string(d)) {
			t.Errorf("Domain(%s) dropped the name", d)
		}
	}
	if DomainColor("unknown") != 0x888888 {
		t.Error("unknown domain should render grey")
	}
}
