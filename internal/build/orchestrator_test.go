package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/geodesk/golbuild/internal/osmsource"
)

func TestRun_EndToEndProducesAGOL(t *testing.T) {
	fixture := &osmsource.Fixture{
		Nodes: []osmsource.NodeFixture{
			{ID: 1, Lon: 13.4, Lat: 52.5, Tags: map[string]string{"amenity": "cafe"}},
			{ID: 2, Lon: 13.41, Lat: 52.51},
			{ID: 3, Lon: 13.42, Lat: 52.52},
			{ID: 4, Lon: 13.40, Lat: 52.52},
		},
		Ways: []osmsource.WayFixture{
			{ID: 10, Tags: map[string]string{"highway": "residential"}, NodeIDs: []int64{1, 2, 3}},
			{ID: 11, Tags: map[string]string{"building": "yes"}, NodeIDs: []int64{1, 2, 3, 4, 1}},
		},
		Relations: []osmsource.RelationFixture{
			{ID: 100, Tags: map[string]string{"type": "multipolygon"}, Members: []osmsource.MemberFixture{
				{ID: 11, Type: osmsource.MemberWay, Role: "outer"},
			}},
		},
	}

	dir := t.TempDir()
	outputPath := filepath.Join(dir, "berlin.gol")
	workDir := filepath.Join(dir, "berlin-work")

	result, err := Run(context.Background(), Config{
		Source:     fixture,
		OutputPath: outputPath,
		WorkDir:    workDir,
		Settings: Settings{
			MinTileDensity: 1 << 40,
			MaxTiles:       1,
			MinStringUsage: 1,
			IndexedKeys:    "highway,building",
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Compiler.TilesCompiled != 1 {
		t.Errorf("TilesCompiled = %d, want 1", result.Compiler.TilesCompiled)
	}
	if result.TilesWritten != 1 {
		t.Errorf("TilesWritten = %d, want 1", result.TilesWritten)
	}
	if result.WorkDirKept {
		t.Errorf("work directory should be removed by default")
	}

	if _, err := os.Stat(outputPath); err != nil {
		t.Errorf("expected a GOL at %s: %v", outputPath, err)
	}
	if _, err := os.Stat(workDir); !os.IsNotExist(err) {
		t.Errorf("expected work directory to be removed, stat err = %v", err)
	}
}

func TestRun_UpdatableKeepsWorkDirectory(t *testing.T) {
	fixture := &osmsource.Fixture{
		Nodes: []osmsource.NodeFixture{
			{ID: 1, Lon: 13.4, Lat: 52.5},
			{ID: 2, Lon: 13.41, Lat: 52.51},
		},
		Ways: []osmsource.WayFixture{
			{ID: 10, Tags: map[string]string{"highway": "residential"}, NodeIDs: []int64{1, 2}},
		},
	}

	dir := t.TempDir()
	outputPath := filepath.Join(dir, "test.gol")
	workDir := filepath.Join(dir, "test-work")

	result, err := Run(context.Background(), Config{
		Source:     fixture,
		OutputPath: outputPath,
		WorkDir:    workDir,
		Settings: Settings{
			MinTileDensity: 1 << 40,
			MaxTiles:       1,
			MinStringUsage: 1,
			Updatable:      true,
		},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.WorkDirKept {
		t.Errorf("expected --updatable to keep the work directory")
	}
	for _, name := range []string{"nodes.idx", "ways.idx", "relations.idx"} {
		if _, err := os.Stat(filepath.Join(workDir, name)); err != nil {
			t.Errorf("expected %s to survive: %v", name, err)
		}
	}
}

func TestSettings_Resolve_RejectsMalformedAreaRules(t *testing.T) {
	_, err := Settings{AreaRules: "area("}.Resolve()
	if err == nil {
		t.Fatalf("expected an error for a malformed --areas rule string")
	}
}

func TestSettings_Resolve_RejectsMalformedLevels(t *testing.T) {
	_, err := Settings{Levels: "0,banana,12"}.Resolve()
	if err == nil {
		t.Fatalf("expected an error for a malformed --levels value")
	}
}
