package buildutil

import "testing"

func TestParseIndexedKeys_SimpleCommaList(t *testing.T) {
	keys, err := ParseIndexedKeys("highway,building,amenity")
	if err != nil {
		t.Fatalf("ParseIndexedKeys: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("got %d keys, want 3", len(keys))
	}
	for i, want := range []string{"highway", "building", "amenity"} {
		if keys[i].Key != want {
			t.Errorf("keys[%d].Key = %q, want %q", i, keys[i].Key, want)
		}
		if keys[i].Category != i+1 {
			t.Errorf("keys[%d].Category = %d, want %d", i, keys[i].Category, i+1)
		}
	}
}

func TestParseIndexedKeys_SlashGroupsSameCategory(t *testing.T) {
	keys, err := ParseIndexedKeys("building/construction,amenity")
	if err != nil {
		t.Fatalf("ParseIndexedKeys: %v", err)
	}
	if len(keys) != 3 {
		t.Fatalf("got %d keys, want 3", len(keys))
	}
	if keys[0].Key != "building" || keys[0].Category != 1 {
		t.Errorf("keys[0] = %+v, want {building 1}", keys[0])
	}
	if keys[1].Key != "construction" || keys[1].Category != 1 {
		t.Errorf("keys[1] = %+v, want {construction 1}", keys[1])
	}
	if keys[2].Key != "amenity" || keys[2].Category != 2 {
		t.Errorf("keys[2] = %+v, want {amenity 2}", keys[2])
	}
}

func TestParseIndexedKeys_RejectsDuplicates(t *testing.T) {
	if _, err := ParseIndexedKeys("highway,highway"); err == nil {
		t.Error("expected error for duplicate key")
	}
}

func TestParseIndexedKeys_EmptyInput(t *testing.T) {
	keys, err := ParseIndexedKeys("")
	if err != nil {
		t.Fatalf("ParseIndexedKeys(\"\"): %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("got %d keys, want 0", len(keys))
	}
}

func TestParseIndexedKeys_TooManyCategories(t *testing.T) {
	s := ""
	for i := 0; i < MaxIndexCategories+1; i++ {
		if i > 0 {
			s += ","
		}
		s += "k"
		s += string(rune('a'+i%26))
		s += string(rune('0' + i/26))
	}
	if _, err := ParseIndexedKeys(s); err == nil {
		t.Error("expected error for too many categories")
	}
}

func TestFormatIndexedKeys_RoundTrips(t *testing.T) {
	original := "building/construction,amenity,highway"
	keys, err := ParseIndexedKeys(original)
	if err != nil {
		t.Fatal(err)
	}
	formatted := FormatIndexedKeys(keys)
	reparsed, err := ParseIndexedKeys(formatted)
	if err != nil {
		t.Fatalf("reparsing %q: %v", formatted, err)
	}
	if len(reparsed) != len(keys) {
		t.Fatalf("round trip length mismatch: %d != %d", len(reparsed), len(keys))
	}
	for i := range keys {
		if reparsed[i] != keys[i] {
			t.Errorf("round trip[%d] = %+v, want %+v", i, reparsed[i], keys[i])
		}
	}
}
