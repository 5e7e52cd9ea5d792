package geometry

import (
	"image"
	"testing"
)

func TestNewBoxOrdersCorners(t *testing.T) {
	b := NewBox(10, 40, 5, 20)
	if b.MinX != 5 || b.MinY != 20 || b.MaxX != 10 || b.MaxY != 40 {
		t.Fatalf("unexpected box: %+v", b)
	}
}

func TestWidthHeightArea(t *testing.T) {
	b := Box{MinX: 2, MinY: 3, MaxX: 10, MaxY: 7}
	if b.Width() != 8 || b.Height() != 4 {
		t.Fatalf("unexpected dims: %vx%v", b.Width(), b.Height())
	}
	if b.Area() != 32 {
		t.Fatalf("unexpected area: %v", b.Area())
	}
	// Inverted corners carry negative area so overlap math can reject them.
	inv := Box{MinX: 10, MinY: 3, MaxX: 2, MaxY: 7}
	if inv.Area() >= 0 {
		t.Fatalf("expected negative area, got %v", inv.Area())
	}
}

func TestCornerCenterRoundTrip(t *testing.T) {
	cases := []Box{
		{MinX: 54, MinY: 66, MaxX: 198, MaxY: 114},
		{MinX: 42, MinY: 78, MaxX: 186, MaxY: 126},
		{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1},
	}
	for _, b := range cases {
		got := b.Center().Corner()
		if got != b {
			t.Fatalf("round trip mismatch: %+v != %+v", got, b)
		}
	}
}

func TestCenterForm(t *testing.T) {
	c := Box{MinX: 40, MinY: 60, MaxX: 80, MaxY: 100}.Center()
	if c.CX != 60 || c.CY != 80 || c.W != 40 || c.H != 40 {
		t.Fatalf("unexpected center form: %+v", c)
	}
}

func TestSliceConversions(t *testing.T) {
	boxes := []Box{
		{MinX: 0, MinY: 0, MaxX: 10, MaxY: 20},
		{MinX: 5, MinY: 5, MaxX: 15, MaxY: 25},
	}
	centers := ToCenterForm(boxes)
	if len(centers) != len(boxes) {
		t.Fatalf("length mismatch: %d", len(centers))
	}
	back := ToCornerForm(centers)
	for i := range boxes {
		if back[i] != boxes[i] {
			t.Fatalf("row %d mismatch: %+v != %+v", i, back[i], boxes[i])
		}
	}
}

func TestDenormalizeBox(t *testing.T) {
	got := DenormalizeBox(Box{MinX: 0.1, MinY: 0.2, MaxX: 0.3, MaxY: 0.4}, 300, 200)
	want := image.Rectangle{Min: image.Pt(30, 40), Max: image.Pt(90, 80)}
	if got != want {
		t.Fatalf("unexpected rectangle: %v", got)
	}
}

func TestDenormalizeBoxTruncates(t *testing.T) {
	// Half-pixel coordinates truncate, they never round up.
	got := DenormalizeBox(Box{MinX: 0.155, MinY: 0.255, MaxX: 0.355, MaxY: 0.455}, 100, 100)
	want := image.Rectangle{Min: image.Pt(15, 25), Max: image.Pt(35, 45)}
	if got != want {
		t.Fatalf("unexpected rectangle: %v", got)
	}
}
