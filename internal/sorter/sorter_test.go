package sorter

import (
	"context"
	"testing"

	"github.com/geodesk/golbuild/internal/analyzer"
	"github.com/geodesk/golbuild/internal/coord"
	"github.com/geodesk/golbuild/internal/osmsource"
	"github.com/geodesk/golbuild/internal/protogol"
	"github.com/geodesk/golbuild/internal/stringcat"
	"github.com/geodesk/golbuild/internal/tilecatalog"
)

// denseConfig keeps the whole test fixture in a single pile (the root
// tile): a sparse MinTileDensity cutoff and MaxTiles=1 never lets the
// catalog subdivide. That keeps record decoding simple, since every
// write lands in the same pile with no locator bytes.
func denseConfig() tilecatalog.Config {
	return tilecatalog.Config{MinTileDensity: 1 << 40, MaxTiles: 1}
}

func buildCatalogs(t *testing.T, fixture *osmsource.Fixture) *analyzer.Result {
	t.Helper()
	cfg := analyzer.Config{
		TileCatalog: denseConfig(),
		Strings:     stringcat.Config{MinProtoStringUsage: 1},
	}
	result, err := analyzer.Run(context.Background(), fixture, cfg)
	if err != nil {
		t.Fatalf("analyzer.Run: %v", err)
	}
	return result
}

// runFixture builds a Sorter over fixture in a fresh temp dir and drives
// it directly (rather than through Run) so the test can still reach into
// the Sorter's piles and indexes before Close tears them down.
func runFixture(t *testing.T, fixture *osmsource.Fixture) (*Sorter, *analyzer.Result) {
	t.Helper()
	catalogs := buildCatalogs(t, fixture)
	s, err := New(t.TempDir(), catalogs.TileCatalog, catalogs.StringCatalog)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := fixture.Read(context.Background(), s); err != nil {
		t.Fatalf("fixture.Read: %v", err)
	}
	return s, catalogs
}

// rec is one decoded record from a pile's byte stream, enough for a test
// to check what kinds of records the sorter wrote and how many.
type rec struct {
	kind RecordType
	tags []protogol.Tag
}

func decodePile(t *testing.T, data []byte, strings *stringcat.Catalog, arena *protogol.LiteralArena) []rec {
	t.Helper()
	r := protogol.NewReader(data)
	var out []rec
	for r.Remaining() > 0 {
		kindByte, err := r.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte: %v", err)
		}
		kind := RecordType(kindByte)

		var tags []protogol.Tag
		switch kind {
		case RecordNode:
			tagged, err := r.ReadUvarint()
			if err != nil {
				t.Fatalf("ReadUvarint (id delta): %v", err)
			}
			_, hasTags := protogol.DecodeTaggedDelta(tagged)
			mustReadVarint(t, r) // dx
			mustReadVarint(t, r) // dy
			if hasTags {
				tags = mustDecodeTags(t, r, strings, arena)
			}
		case RecordWay, RecordGhostWay:
			tagged, err := r.ReadUvarint()
			if err != nil {
				t.Fatalf("ReadUvarint (id delta): %v", err)
			}
			_, hasTags, hasLocator := protogol.DecodeTaggedDelta2(tagged)
			if hasLocator {
				if _, err := r.ReadByte(); err != nil {
					t.Fatalf("ReadByte (locator): %v", err)
				}
			}
			count, err := r.ReadUvarint()
			if err != nil {
				t.Fatalf("ReadUvarint (node count): %v", err)
			}
			n, _ := decodeNodeCount(count)
			for i := 0; i < n; i++ {
				mustReadVarint(t, r)
			}
			if hasTags {
				tags = mustDecodeTags(t, r, strings, arena)
			}
		case RecordRelation:
			tagged, err := r.ReadUvarint()
			if err != nil {
				t.Fatalf("ReadUvarint (id delta): %v", err)
			}
			_, hasTags, hasLocator := protogol.DecodeTaggedDelta2(tagged)
			if hasLocator {
				if _, err := r.ReadByte(); err != nil {
					t.Fatalf("ReadByte (locator): %v", err)
				}
			}
			memberCount, err := r.ReadUvarint()
			if err != nil {
				t.Fatalf("ReadUvarint (member count): %v", err)
			}
			for i := uint64(0); i < memberCount; i++ {
				if _, err := r.ReadByte(); err != nil {
					t.Fatalf("ReadByte (member type): %v", err)
				}
				if _, err := r.ReadUvarint(); err != nil {
					t.Fatalf("ReadUvarint (member id): %v", err)
				}
				if _, err := r.ReadUvarint(); err != nil {
					t.Fatalf("ReadUvarint (member role ref): %v", err)
				}
			}
			if hasTags {
				tags = mustDecodeTags(t, r, strings, arena)
			}
		case RecordMembership:
			mustReadVarint(t, r) // rel id delta
			if _, err := r.ReadByte(); err != nil {
				t.Fatalf("ReadByte (membership member type): %v", err)
			}
			if _, err := r.ReadUvarint(); err != nil {
				t.Fatalf("ReadUvarint (membership member id): %v", err)
			}
			if _, err := r.ReadUvarint(); err != nil {
				t.Fatalf("ReadUvarint (membership role ref): %v", err)
			}
		default:
			t.Fatalf("unexpected record kind %d", kind)
		}
		out = append(out, rec{kind: kind, tags: tags})
	}
	return out
}

func mustReadVarint(t *testing.T, r *protogol.Reader) int64 {
	t.Helper()
	v, err := r.ReadVarint()
	if err != nil {
		t.Fatalf("ReadVarint: %v", err)
	}
	return v
}

func mustDecodeTags(t *testing.T, r *protogol.Reader, strings *stringcat.Catalog, arena *protogol.LiteralArena) []protogol.Tag {
	t.Helper()
	tags, err := protogol.DecodeTags(r, strings, arena)
	if err != nil {
		t.Fatalf("DecodeTags: %v", err)
	}
	return tags
}

func TestRun_WritesOneRecordPerPrimitive(t *testing.T) {
	fixture := &osmsource.Fixture{
		Nodes: []osmsource.NodeFixture{
			{ID: 1, Lon: 13.4, Lat: 52.5, Tags: map[string]string{"amenity": "cafe"}},
			{ID: 2, Lon: 13.41, Lat: 52.51},
			{ID: 3, Lon: 13.42, Lat: 52.52},
		},
		Ways: []osmsource.WayFixture{
			{ID: 10, Tags: map[string]string{"highway": "residential"}, NodeIDs: []int64{1, 2, 3}},
		},
		Relations: []osmsource.RelationFixture{
			{
				ID:   100,
				Tags: map[string]string{"type": "multipolygon"},
				Members: []osmsource.MemberFixture{
					{ID: 10, Type: osmsource.MemberWay, Role: "outer"},
				},
			},
		},
	}
	s, catalogs := runFixture(t, fixture)

	data, err := s.piles.Load(coord.Pile(1))
	if err != nil {
		t.Fatalf("Load(1): %v", err)
	}
	records := decodePile(t, data, catalogs.StringCatalog, s.arena)

	var nodes, ways, relations int
	for _, r := range records {
		switch r.kind {
		case RecordNode:
			nodes++
		case RecordWay:
			ways++
		case RecordRelation:
			relations++
		}
	}
	if nodes != 3 {
		t.Errorf("decoded %d node records, want 3", nodes)
	}
	if ways != 1 {
		t.Errorf("decoded %d way records, want 1", ways)
	}
	if relations != 1 {
		t.Errorf("decoded %d relation records, want 1", relations)
	}

	if p := s.nodeIndex.Get(1); coord.Pile(p) != coord.Pile(1) {
		t.Errorf("nodeIndex.Get(1) = %d, want pile 1", p)
	}
	if pp := coord.PilePair(s.wayIndex.Get(10)); pp.Pile() != coord.Pile(1) || !pp.IsSingle() {
		t.Errorf("wayIndex.Get(10) = %v, want a single-tile pair in pile 1", pp)
	}
	if pp := coord.PilePair(s.relIndex.Get(100)); pp.Pile() != coord.Pile(1) || !pp.IsSingle() {
		t.Errorf("relIndex.Get(100) = %v, want a single-tile pair in pile 1", pp)
	}
}

func TestRun_WayWithTooFewDistinctNodesIsRejected(t *testing.T) {
	fixture := &osmsource.Fixture{
		Nodes: []osmsource.NodeFixture{{ID: 1, Lon: 13.4, Lat: 52.5}},
		Ways:  []osmsource.WayFixture{{ID: 10, NodeIDs: []int64{1}}},
	}
	s, _ := runFixture(t, fixture)

	if s.stats.WaysRejected != 1 {
		t.Errorf("WaysRejected = %d, want 1", s.stats.WaysRejected)
	}
	if pp := coord.PilePair(s.wayIndex.Get(10)); pp.Valid() {
		t.Errorf("wayIndex.Get(10) = %v, want an invalid entry for a rejected way", pp)
	}
}

func TestRun_ClosedRingWithOnlyTwoDistinctNodesIsRejected(t *testing.T) {
	fixture := &osmsource.Fixture{
		Nodes: []osmsource.NodeFixture{
			{ID: 1, Lon: 13.4, Lat: 52.5},
			{ID: 2, Lon: 13.41, Lat: 52.51},
		},
		Ways: []osmsource.WayFixture{{ID: 10, NodeIDs: []int64{1, 2, 1}}},
	}
	s, _ := runFixture(t, fixture)

	if s.stats.WaysRejected != 1 {
		t.Errorf("WaysRejected = %d, want 1", s.stats.WaysRejected)
	}
	if pp := coord.PilePair(s.wayIndex.Get(10)); pp.Valid() {
		t.Errorf("wayIndex.Get(10) = %v, want an invalid entry for a rejected way", pp)
	}
}

func TestRun_RelationWithMissingMemberGetsSyntheticTag(t *testing.T) {
	fixture := &osmsource.Fixture{
		Nodes: []osmsource.NodeFixture{{ID: 1, Lon: 13.4, Lat: 52.5}},
		Ways:  []osmsource.WayFixture{{ID: 10, NodeIDs: []int64{1}}}, // too few nodes, gets rejected
		Relations: []osmsource.RelationFixture{
			{
				ID: 100,
				Members: []osmsource.MemberFixture{
					{ID: 10, Type: osmsource.MemberWay, Role: "outer"},  // never placed: way was rejected
					{ID: 1, Type: osmsource.MemberNode, Role: "marker"}, // placed fine
				},
			},
		},
	}
	s, catalogs := runFixture(t, fixture)

	if s.stats.WaysRejected != 1 {
		t.Errorf("WaysRejected = %d, want 1", s.stats.WaysRejected)
	}

	data, err := s.piles.Load(coord.Pile(1))
	if err != nil {
		t.Fatalf("Load(1): %v", err)
	}
	records := decodePile(t, data, catalogs.StringCatalog, s.arena)

	found := false
	for _, r := range records {
		if r.kind != RecordRelation {
			continue
		}
		for _, tag := range r.tags {
			if tag.Key == missingMembersKey && tag.Value == "1" {
				found = true
			}
		}
	}
	if !found {
		t.Errorf("expected a relation record tagged %s=1, got %+v", missingMembersKey, records)
	}
}

func TestRun_SuperRelationIsDeferredAndResolved(t *testing.T) {
	fixture := &osmsource.Fixture{
		Nodes: []osmsource.NodeFixture{{ID: 1, Lon: 13.4, Lat: 52.5}},
		Relations: []osmsource.RelationFixture{
			{ID: 200, Tags: map[string]string{"type": "multipolygon"}, Members: []osmsource.MemberFixture{
				{ID: 1, Type: osmsource.MemberNode, Role: "outer"},
			}},
			{ID: 300, Tags: map[string]string{"type": "network"}, Members: []osmsource.MemberFixture{
				{ID: 200, Type: osmsource.MemberRelation},
			}},
		},
	}
	s, catalogs := runFixture(t, fixture)

	if s.stats.SuperRelationsDeferred != 1 {
		t.Errorf("SuperRelationsDeferred = %d, want 1", s.stats.SuperRelationsDeferred)
	}
	if s.stats.SuperRelationsResolved != 1 {
		t.Errorf("SuperRelationsResolved = %d, want 1", s.stats.SuperRelationsResolved)
	}

	data, err := s.piles.Load(coord.Pile(1))
	if err != nil {
		t.Fatalf("Load(1): %v", err)
	}
	records := decodePile(t, data, catalogs.StringCatalog, s.arena)

	relations := 0
	for _, r := range records {
		if r.kind == RecordRelation {
			relations++
		}
	}
	if relations != 2 {
		t.Errorf("decoded %d relation records, want 2 (the plain relation plus the resolved super-relation)", relations)
	}
}

func TestRun_SelfReferencingRelationMemberIsDropped(t *testing.T) {
	fixture := &osmsource.Fixture{
		Nodes: []osmsource.NodeFixture{{ID: 1, Lon: 13.4, Lat: 52.5}},
		Relations: []osmsource.RelationFixture{
			{ID: 200, Members: []osmsource.MemberFixture{
				{ID: 200, Type: osmsource.MemberRelation}, // self-reference, dropped
				{ID: 1, Type: osmsource.MemberNode},
			}},
		},
	}
	s, _ := runFixture(t, fixture)

	if s.stats.SuperRelationsDeferred != 0 {
		t.Errorf("SuperRelationsDeferred = %d, want 0: a relation whose only relation member is itself isn't a super-relation", s.stats.SuperRelationsDeferred)
	}
	if pp := coord.PilePair(s.relIndex.Get(200)); !pp.Valid() {
		t.Errorf("relIndex.Get(200) = %v, want the relation placed via its remaining node member", pp)
	}
}
