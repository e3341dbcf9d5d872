package imgio

import "testing"

func TestImageAtIndexesCorrectPixel(t *testing.T) {
	img := NewImage(2, 3, 3, F32)
	for i := range img.Data {
		img.Data[i] = float32(i)
	}

	px := img.At(1, 2)
	want := []float32{15, 16, 17}

	for i := range want {
		if px[i] != want[i] {
			t.Fatalf("At(1,2)[%d] = %v, want %v", i, px[i], want[i])
		}
	}
}

func TestTileContainsAndSourceCoord(t *testing.T) {
	tile := Tile{HSrcBegin: 0, WSrcBegin: 0, HDstBegin: 2, WDstBegin: 2, H: 12, W: 12}

	if tile.Contains(0, 0) {
		t.Fatal("(0,0) should be outside the tile (padding region)")
	}

	if !tile.Contains(2, 2) {
		t.Fatal("(2,2) should be the tile's top-left corner")
	}

	h, w := tile.SourceCoord(5, 7)
	if h != 3 || w != 5 {
		t.Fatalf("SourceCoord(5,7) = (%d,%d), want (3,5)", h, w)
	}
}

func TestImageStrideDefaultsToPacked(t *testing.T) {
	img := Image{H: 4, W: 5, Channels: 3}
	if got := img.Stride(); got != 15 {
		t.Fatalf("Stride() = %d, want 15", got)
	}
}
