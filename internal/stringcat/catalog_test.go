package stringcat

import "testing"

func TestBuild_CoreStringsAlwaysFirst(t *testing.T) {
	b := NewBuilder(0)
	cat := b.Build(Config{})
	if len(cat.GST) < 5 {
		t.Fatalf("GST too short: %v", cat.GST)
	}
	for i, want := range CoreStrings {
		if cat.GST[i] != want {
			t.Errorf("GST[%d] = %q, want %q", i, cat.GST[i], want)
		}
	}
}

func TestBuild_IndexedKeysFollowCore(t *testing.T) {
	b := NewBuilder(0)
	cat := b.Build(Config{IndexedKeys: []string{"highway", "building"}})
	if cat.GST[5] != "highway" || cat.GST[6] != "building" {
		t.Errorf("GST[5:7] = %v, want [highway building]", cat.GST[5:7])
	}
}

func TestBuild_RequiredStringsSurviveCulling(t *testing.T) {
	b := NewBuilder(0)
	b.MarkRequired("rare_but_required")
	cat := b.Build(Config{MinProtoStringUsage: 100})

	found := false
	for _, s := range cat.GST {
		if s == "rare_but_required" {
			found = true
		}
	}
	if !found {
		t.Error("required string was dropped despite zero usage count")
	}
}

func TestBuild_BelowThresholdStringsExcluded(t *testing.T) {
	b := NewBuilder(0)
	a := NewArena()
	a.ObserveValue("rare")
	b.MergeArena(a)

	cat := b.Build(Config{MinProtoStringUsage: 100})
	for _, s := range cat.GST {
		if s == "rare" {
			t.Error("infrequent, non-required string should not appear in GST")
		}
	}
	if _, ok := cat.ValueRef("rare"); ok {
		t.Error("ValueRef should not resolve an excluded string")
	}
}

func TestBuild_FrequentStringsIncludedAndOrdered(t *testing.T) {
	b := NewBuilder(0)
	for i := 0; i < 200; i++ {
		a := NewArena()
		a.ObserveValue("common")
		b.MergeArena(a)
	}
	for i := 0; i < 150; i++ {
		a := NewArena()
		a.ObserveValue("lesscommon")
		b.MergeArena(a)
	}
	cat := b.Build(Config{MinProtoStringUsage: 1})

	idxCommon, idxLess := -1, -1
	for i, s := range cat.GST {
		if s == "common" {
			idxCommon = i
		}
		if s == "lesscommon" {
			idxLess = i
		}
	}
	if idxCommon == -1 || idxLess == -1 {
		t.Fatalf("expected both strings in GST, got %v", cat.GST)
	}
	if idxCommon >= idxLess {
		t.Errorf("more frequent string should sort earlier: common@%d lesscommon@%d", idxCommon, idxLess)
	}
}

func TestBuild_NarrowNumericStringsExcluded(t *testing.T) {
	b := NewBuilder(0)
	for i := 0; i < 200; i++ {
		a := NewArena()
		a.ObserveValue("42")
		b.MergeArena(a)
	}
	cat := b.Build(Config{MinProtoStringUsage: 1})
	for _, s := range cat.GST {
		if s == "42" {
			t.Error("canonical narrow numeric string should be excluded from GST")
		}
	}
}

func TestBuild_RespectsMaxStrings(t *testing.T) {
	b := NewBuilder(0)
	for i := 0; i < 1000; i++ {
		a := NewArena()
		a.ObserveValue(string(rune('a' + i%26)))
		b.MergeArena(a)
	}
	cat := b.Build(Config{MaxStrings: 10, MinProtoStringUsage: 1})
	if len(cat.GST) > 10 {
		t.Errorf("GST length = %d, want <= 10", len(cat.GST))
	}
}

func TestIsCanonicalNarrowNumeric(t *testing.T) {
	cases := map[string]bool{
		"42":      true,
		"0":       true,
		"-5":      true,
		"007":     false,
		"+5":      false,
		"":        false,
		"highway": false,
		"9999999": false, // outside the narrow range
	}
	for s, want := range cases {
		if got := isCanonicalNarrowNumeric(s); got != want {
			t.Errorf("isCanonicalNarrowNumeric(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestStringRef_GlobalRoundTrip(t *testing.T) {
	ref := NewGlobalRef(1234)
	if !ref.IsGlobal() {
		t.Fatal("expected a global ref")
	}
	if ref.GlobalCode() != 1234 {
		t.Errorf("GlobalCode() = %d, want 1234", ref.GlobalCode())
	}
}

func TestStringRef_LiteralRoundTrip(t *testing.T) {
	ref := NewLiteralRef(987654)
	if ref.IsGlobal() {
		t.Fatal("expected a literal ref")
	}
	if ref.LiteralOffset() != 987654 {
		t.Errorf("LiteralOffset() = %d, want 987654", ref.LiteralOffset())
	}
}

func TestCatalog_StringAt(t *testing.T) {
	b := NewBuilder(0)
	cat := b.Build(Config{})
	s, ok := cat.StringAt(0)
	if !ok || s != "" {
		t.Errorf("StringAt(0) = %q, %v; want \"\", true", s, ok)
	}
	s, ok = cat.StringAt(2)
	if !ok || s != "yes" {
		t.Errorf("StringAt(2) = %q, %v; want \"yes\", true", s, ok)
	}
}
