package featureindex

import "testing"

func TestBitWidth(t *testing.T) {
	cases := []struct {
		max  uint64
		want int
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{3, 2},
		{4, 3},
		{65535, 16},
		{65536, 17},
	}
	for _, c := range cases {
		if got := BitWidth(c.max); got != c.want {
			t.Errorf("BitWidth(%d) = %d, want %d", c.max, got, c.want)
		}
	}
}

func TestNodeAndPairIndexWidth(t *testing.T) {
	w := NodeIndexWidth(65535)
	if w != 16 {
		t.Errorf("NodeIndexWidth(65535) = %d, want 16", w)
	}
	if got := PairIndexWidth(65535); got != 18 {
		t.Errorf("PairIndexWidth(65535) = %d, want 18", got)
	}
}

func TestPackedArray_GetPutRoundTrip(t *testing.T) {
	width := uint(13)
	n := 1000
	totalBits := uint64(n) * uint64(width)
	data := make([]byte, (totalBits+7)/8+1)
	arr := NewPackedArray(data, width)

	want := make([]uint64, n)
	for i := 0; i < n; i++ {
		v := uint64(i*37+11) % (arr.Max() + 1)
		want[i] = v
		arr.Put(uint64(i), v)
	}
	for i := 0; i < n; i++ {
		if got := arr.Get(uint64(i)); got != want[i] {
			t.Fatalf("index %d: Get() = %d, want %d", i, got, want[i])
		}
	}
}

func TestPackedArray_UnalignedWidthCrossesByteBoundary(t *testing.T) {
	data := make([]byte, 4)
	arr := NewPackedArray(data, 3)
	for i := uint64(0); i < 10; i++ {
		arr.Put(i, i%8)
	}
	for i := uint64(0); i < 10; i++ {
		if got := arr.Get(i); got != i%8 {
			t.Errorf("index %d: Get() = %d, want %d", i, got, i%8)
		}
	}
}

func TestPackedArray_PutClampsOverflow(t *testing.T) {
	data := make([]byte, 8)
	arr := NewPackedArray(data, 4) // max value 15
	arr.Put(0, 999)
	if got := arr.Get(0); got != arr.Max() {
		t.Errorf("Get(0) after overflowing Put = %d, want %d (clamped)", got, arr.Max())
	}
}

func TestPackedArray_PutCheckedReportsOverflow(t *testing.T) {
	data := make([]byte, 8)
	arr := NewPackedArray(data, 4)
	if err := arr.PutChecked(0, 999); err == nil {
		t.Error("expected an overflow error")
	}
	if err := arr.PutChecked(0, 15); err != nil {
		t.Errorf("unexpected error for a value that fits: %v", err)
	}
}

func TestPackedArray_DoesNotDisturbNeighboringEntries(t *testing.T) {
	data := make([]byte, 8)
	arr := NewPackedArray(data, 5)
	arr.Put(0, arr.Max())
	arr.Put(1, 0)
	arr.Put(2, arr.Max())
	if got := arr.Get(1); got != 0 {
		t.Errorf("writing neighbors disturbed index 1: got %d, want 0", got)
	}
	if got := arr.Get(0); got != arr.Max() {
		t.Errorf("index 0 corrupted: got %d, want %d", got, arr.Max())
	}
	if got := arr.Get(2); got != arr.Max() {
		t.Errorf("index 2 corrupted: got %d, want %d", got, arr.Max())
	}
}
