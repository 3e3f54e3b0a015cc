package validator

import (
	"context"
	"testing"

	"github.com/geodesk/golbuild/internal/analyzer"
	"github.com/geodesk/golbuild/internal/coord"
	"github.com/geodesk/golbuild/internal/osmsource"
	"github.com/geodesk/golbuild/internal/protogol"
	"github.com/geodesk/golbuild/internal/sorter"
	"github.com/geodesk/golbuild/internal/stringcat"
	"github.com/geodesk/golbuild/internal/tilecatalog"
)

// denseConfig keeps an entire fixture in a single pile, mirroring
// sorter's own test helper of the same name: it keeps the assertions
// about record shapes simple without needing a multi-tile fixture to
// exercise the decoder.
func denseConfig() tilecatalog.Config {
	return tilecatalog.Config{MinTileDensity: 1 << 40, MaxTiles: 1}
}

// runSort builds the catalogs and a sorted pile file for fixture, without
// closing any of it, so a Validator can run directly against the same
// open handles (see Validator.New's doc comment on why reopening from
// disk isn't an option).
func runSort(t *testing.T, fixture *osmsource.Fixture) (*sorter.Sorter, *analyzer.Result) {
	t.Helper()
	cfg := analyzer.Config{
		TileCatalog: denseConfig(),
		Strings:     stringcat.Config{MinProtoStringUsage: 1},
	}
	catalogs, err := analyzer.Run(context.Background(), fixture, cfg)
	if err != nil {
		t.Fatalf("analyzer.Run: %v", err)
	}
	s, err := sorter.New(t.TempDir(), catalogs.TileCatalog, catalogs.StringCatalog)
	if err != nil {
		t.Fatalf("sorter.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := fixture.Read(context.Background(), s); err != nil {
		t.Fatalf("fixture.Read: %v", err)
	}
	return s, catalogs
}

// skipPastSortedRecords walks r past every record the sorter would have
// written (node/way/ghost-way/relation/membership), so a test can check
// whatever the validator appended afterward.
func skipPastSortedRecords(t *testing.T, r *protogol.Reader, cat *stringcat.Catalog, arena *protogol.LiteralArena) {
	t.Helper()
	for r.Remaining() > 0 {
		kindByte, err := r.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte: %v", err)
		}
		switch sorter.RecordType(kindByte) {
		case sorter.RecordNode:
			tagged, err := r.ReadUvarint()
			if err != nil {
				t.Fatalf("ReadUvarint: %v", err)
			}
			_, hasTags := protogol.DecodeTaggedDelta(tagged)
			mustReadVarint(t, r)
			mustReadVarint(t, r)
			if hasTags {
				if _, err := protogol.DecodeTags(r, cat, arena); err != nil {
					t.Fatalf("DecodeTags: %v", err)
				}
			}
		case sorter.RecordWay, sorter.RecordGhostWay:
			tagged, err := r.ReadUvarint()
			if err != nil {
				t.Fatalf("ReadUvarint: %v", err)
			}
			_, hasTags, hasLocator := protogol.DecodeTaggedDelta2(tagged)
			if hasLocator {
				if _, err := r.ReadByte(); err != nil {
					t.Fatalf("ReadByte (locator): %v", err)
				}
			}
			countU, err := r.ReadUvarint()
			if err != nil {
				t.Fatalf("ReadUvarint (count): %v", err)
			}
			n, _ := sorter.DecodeNodeCount(countU)
			for i := 0; i < n; i++ {
				mustReadVarint(t, r)
			}
			if hasTags {
				if _, err := protogol.DecodeTags(r, cat, arena); err != nil {
					t.Fatalf("DecodeTags: %v", err)
				}
			}
		case sorter.RecordRelation:
			tagged, err := r.ReadUvarint()
			if err != nil {
				t.Fatalf("ReadUvarint: %v", err)
			}
			_, hasTags, hasLocator := protogol.DecodeTaggedDelta2(tagged)
			if hasLocator {
				if _, err := r.ReadByte(); err != nil {
					t.Fatalf("ReadByte (locator): %v", err)
				}
			}
			memberCount, err := r.ReadUvarint()
			if err != nil {
				t.Fatalf("ReadUvarint (members): %v", err)
			}
			for i := uint64(0); i < memberCount; i++ {
				r.ReadByte()
				r.ReadUvarint()
				r.ReadUvarint()
			}
			if hasTags {
				if _, err := protogol.DecodeTags(r, cat, arena); err != nil {
					t.Fatalf("DecodeTags: %v", err)
				}
			}
		case sorter.RecordMembership:
			mustReadVarint(t, r)
			r.ReadByte()
			r.ReadUvarint()
			r.ReadUvarint()
		case RecordExportTable:
			return
		default:
			t.Fatalf("unexpected record kind %d", kindByte)
		}
	}
}

func mustReadVarint(t *testing.T, r *protogol.Reader) int64 {
	t.Helper()
	v, err := r.ReadVarint()
	if err != nil {
		t.Fatalf("ReadVarint: %v", err)
	}
	return v
}

func decodeExportTable(t *testing.T, r *protogol.Reader) []coord.TypedFeatureId {
	t.Helper()
	count, err := r.ReadUvarint()
	if err != nil {
		t.Fatalf("ReadUvarint (export count): %v", err)
	}
	out := make([]coord.TypedFeatureId, count)
	for i := range out {
		v, err := r.ReadUvarint()
		if err != nil {
			t.Fatalf("ReadUvarint (export entry): %v", err)
		}
		out[i] = coord.TypedFeatureId(v)
	}
	return out
}

func TestRun_AppendsExportTableWithTaggedNodeWayAndRelation(t *testing.T) {
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
			{ID: 100, Tags: map[string]string{"type": "multipolygon"}, Members: []osmsource.MemberFixture{
				{ID: 10, Type: osmsource.MemberWay, Role: "outer"},
			}},
		},
	}
	s, catalogs := runSort(t, fixture)

	v, err := New(catalogs.TileCatalog, catalogs.StringCatalog, s.Arena(), s.Piles(), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := v.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Stats.TilesProcessed != 1 {
		t.Errorf("TilesProcessed = %d, want 1", result.Stats.TilesProcessed)
	}

	data, err := s.Piles().Load(coord.Pile(1))
	if err != nil {
		t.Fatalf("Load(1): %v", err)
	}
	r := protogol.NewReader(data)
	skipPastSortedRecords(t, r, catalogs.StringCatalog, s.Arena())

	kindByte, err := r.ReadByte()
	if err != nil {
		t.Fatalf("ReadByte (export table marker): %v", err)
	}
	if kindByte != RecordExportTable {
		t.Fatalf("expected the export table record, got kind %d", kindByte)
	}
	entries := decodeExportTable(t, r)

	want := map[coord.TypedFeatureId]bool{
		coord.NewTypedFeatureId(1, coord.FeatureNode):       true,
		coord.NewTypedFeatureId(10, coord.FeatureWay):       true,
		coord.NewTypedFeatureId(100, coord.FeatureRelation): true,
	}
	if len(entries) != len(want) {
		t.Fatalf("export table has %d entries, want %d: %v", len(entries), len(want), entries)
	}
	for _, e := range entries {
		if !want[e] {
			t.Errorf("unexpected export table entry %v (id=%d type=%s)", e, e.ID(), e.Type())
		}
	}
}

func TestRun_FlagsSharedLocationNodes(t *testing.T) {
	fixture := &osmsource.Fixture{
		Nodes: []osmsource.NodeFixture{
			{ID: 1, Lon: 13.4, Lat: 52.5},
			{ID: 2, Lon: 13.4, Lat: 52.5}, // same coordinate as node 1
		},
	}
	s, catalogs := runSort(t, fixture)

	v, err := New(catalogs.TileCatalog, catalogs.StringCatalog, s.Arena(), s.Piles(), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := v.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Stats.SharedLocationNodes != 2 {
		t.Errorf("SharedLocationNodes = %d, want 2", result.Stats.SharedLocationNodes)
	}
	if result.Stats.OrphanNodes != 0 {
		t.Errorf("OrphanNodes = %d, want 0: shared-location nodes are promoted, not orphaned", result.Stats.OrphanNodes)
	}
}

func TestRun_FlagsOrphanNodes(t *testing.T) {
	fixture := &osmsource.Fixture{
		Nodes: []osmsource.NodeFixture{
			{ID: 1, Lon: 13.4, Lat: 52.5}, // untagged, unreferenced
		},
	}
	s, catalogs := runSort(t, fixture)

	v, err := New(catalogs.TileCatalog, catalogs.StringCatalog, s.Arena(), s.Piles(), Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	result, err := v.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Stats.OrphanNodes != 1 {
		t.Errorf("OrphanNodes = %d, want 1", result.Stats.OrphanNodes)
	}
}
