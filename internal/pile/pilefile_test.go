package pile

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/geodesk/golbuild/internal/coord"
)

func TestAppendAndLoad_SinglePage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.bin")
	pf, err := Create(path, 4, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer pf.Close()

	want := []byte("hello pile")
	if err := pf.Append(coord.Pile(1), want); err != nil {
		t.Fatal(err)
	}

	got, err := pf.Load(coord.Pile(1))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Load = %q, want %q", got, want)
	}
}

func TestAppend_SpansMultiplePages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.bin")
	pf, err := Create(path, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer pf.Close()

	// Big enough to span several 16 KiB pages.
	want := bytes.Repeat([]byte{0xAB}, PayloadSize*3+500)
	if err := pf.Append(coord.Pile(1), want); err != nil {
		t.Fatal(err)
	}

	got, err := pf.Load(coord.Pile(1))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("Load returned %d bytes, want %d", len(got), len(want))
	}
}

func TestAppend_MultipleCallsConcatenate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.bin")
	pf, err := Create(path, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer pf.Close()

	if err := pf.Append(coord.Pile(1), []byte("abc")); err != nil {
		t.Fatal(err)
	}
	if err := pf.Append(coord.Pile(1), []byte("def")); err != nil {
		t.Fatal(err)
	}

	got, err := pf.Load(coord.Pile(1))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "abcdef" {
		t.Errorf("Load = %q, want %q", got, "abcdef")
	}
}

func TestPiles_AreIndependent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.bin")
	pf, err := Create(path, 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer pf.Close()

	pf.Append(coord.Pile(1), []byte("one"))
	pf.Append(coord.Pile(2), []byte("two"))
	pf.Append(coord.Pile(3), []byte("three"))

	for p, want := range map[coord.Pile]string{1: "one", 2: "two", 3: "three"} {
		got, err := pf.Load(p)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != want {
			t.Errorf("pile %d = %q, want %q", p, got, want)
		}
	}
}

func TestLoad_UnwrittenPileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.bin")
	pf, err := Create(path, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer pf.Close()

	got, err := pf.Load(coord.Pile(2))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("unwritten pile should load empty, got %d bytes", len(got))
	}
}

func TestPreallocate_ThenAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.bin")
	pf, err := Create(path, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer pf.Close()

	if err := pf.Preallocate(coord.Pile(1), PayloadSize*2); err != nil {
		t.Fatal(err)
	}
	if err := pf.Append(coord.Pile(1), []byte("after preallocate")); err != nil {
		t.Fatal(err)
	}

	got, err := pf.Load(coord.Pile(1))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "after preallocate" {
		t.Errorf("Load = %q", got)
	}
}

func TestCheckPile_OutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.bin")
	pf, err := Create(path, 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer pf.Close()

	if err := pf.Append(coord.Pile(0), []byte("x")); err == nil {
		t.Error("pile 0 (absent) should be rejected")
	}
	if err := pf.Append(coord.Pile(3), []byte("x")); err == nil {
		t.Error("pile beyond pileCount should be rejected")
	}
}
