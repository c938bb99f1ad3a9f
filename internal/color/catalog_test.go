package color

import (
	"errors"
	"testing"
)

func TestMatch_RoundTrip(t *testing.T) {
	for _, name := range Names() {
		rgb, err := Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q) error = %v", name, err)
		}
		if got := Match(rgb); got != name {
			t.Errorf("Match(Lookup(%q)) = %q", name, got)
		}
	}
}

func TestMatch_Custom(t *testing.T) {
	tests := []RGB{
		{1, 2, 3},
		{255, 0, 1},
		{254, 254, 254},
	}
	for _, rgb := range tests {
		if got := Match(rgb); got != Custom {
			t.Errorf("Match(%s) = %q, want %q", rgb, got, Custom)
		}
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name string
		want RGB
	}{
		{"red", RGB{255, 0, 0}},
		{"Red", RGB{255, 0, 0}},
		{"light blue", RGB{173, 216, 230}},
		{"DarkOrange", RGB{255, 140, 0}},
	}
	for _, tt := range tests {
		got, err := Lookup(tt.name)
		if err != nil {
			t.Errorf("Lookup(%q) error = %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Lookup(%q) = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestLookup_Unknown(t *testing.T) {
	for _, name := range []string{"", "notacolor", Custom} {
		if _, err := Lookup(name); !errors.Is(err, ErrUnknownColorName) {
			t.Errorf("Lookup(%q) error = %v, want ErrUnknownColorName", name, err)
		}
	}
}

func TestEntries_UniqueTriples(t *testing.T) {
	seen := make(map[RGB]string)
	for _, e := range Entries() {
		if other, ok := seen[e.RGB]; ok {
			t.Errorf("%q and %q share %s", e.Name, other, e.RGB)
		}
		seen[e.RGB] = e.Name
	}
	if len(Names()) != len(seen) {
		t.Errorf("Names() = %d entries, want %d", len(Names()), len(seen))
	}
}
