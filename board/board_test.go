package board

import "testing"

func mustApply(t *testing.T, b Board, cell int, s Size, c Color) Board {
	t.Helper()
	next, err := Apply(b, cell, s, c)
	if err != nil {
		t.Fatalf("Apply(%d, %v, %s) failed: %v", cell, s, c, err)
	}
	return next
}

func TestParseSize(t *testing.T) {
	cases := []struct {
		raw  string
		want Size
		ok   bool
	}{
		{"P", SizeP, true},
		{"M", SizeM, true},
		{"G", SizeG, true},
		{"p", 0, false},
		{"X", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseSize(c.raw)
		if ok != c.ok || (ok && got != c.want) {
			t.Errorf("ParseSize(%q) = (%v, %v), want (%v, %v)", c.raw, got, ok, c.want, c.ok)
		}
	}
}

func TestLegalityPerSizeSlot(t *testing.T) {
	var b Board
	b = mustApply(t, b, 4, SizeP, Red)

	// Same slot occupied, regardless of color.
	if IsLegal(b, 4, SizeP) {
		t.Error("occupied P slot should be illegal")
	}
	// Other sizes on the same cell stay open.
	if !IsLegal(b, 4, SizeM) || !IsLegal(b, 4, SizeG) {
		t.Error("M and G slots on cell 4 should remain legal")
	}

	if IsLegal(b, -1, SizeP) || IsLegal(b, NumCells, SizeP) {
		t.Error("out-of-range cells should be illegal")
	}
	if IsLegal(b, 0, Size(7)) {
		t.Error("invalid size should be illegal")
	}
}

func TestApplyBoundaryCells(t *testing.T) {
	var b Board
	b = mustApply(t, b, 0, SizeG, Blue)
	b = mustApply(t, b, 8, SizeG, Blue)

	if _, err := Apply(b, 0, SizeG, Red); err != ErrIllegalMove {
		t.Errorf("expected ErrIllegalMove, got %v", err)
	}
	// Apply has value semantics: the original board is untouched.
	var fresh Board
	if next := mustApply(t, fresh, 0, SizeP, Red); next == fresh {
		t.Error("Apply should return a changed copy")
	}
}

func TestVisibleLargestWins(t *testing.T) {
	var b Board
	b = mustApply(t, b, 0, SizeP, Red)
	if v, ok := b[0].Visible(); !ok || v != Red {
		t.Fatalf("visible = (%v, %v), want red", v, ok)
	}
	b = mustApply(t, b, 0, SizeM, Blue)
	if v, _ := b[0].Visible(); v != Blue {
		t.Errorf("M should cover P, visible = %v", v)
	}
	b = mustApply(t, b, 0, SizeG, Green)
	if v, _ := b[0].Visible(); v != Green {
		t.Errorf("G should cover M, visible = %v", v)
	}
	// The covered pieces are still there.
	if c, _ := b[0].Piece(SizeP); c != Red {
		t.Error("covered P piece should persist")
	}
}

func TestHasWinVisibleRow(t *testing.T) {
	var b Board
	// Mixed sizes, same color, one row: counts on visibility alone.
	b = mustApply(t, b, 0, SizeP, Red)
	b = mustApply(t, b, 1, SizeM, Red)
	if HasWin(b, Red) {
		t.Fatal("two cells should not win")
	}
	b = mustApply(t, b, 2, SizeG, Red)
	if !HasWin(b, Red) {
		t.Fatal("visible red row 0-1-2 should win")
	}
	if HasWin(b, Blue) {
		t.Error("blue has no line")
	}
}

func TestHasWinCoveredPieceDoesNotCount(t *testing.T) {
	var b Board
	b = mustApply(t, b, 0, SizeP, Red)
	b = mustApply(t, b, 1, SizeP, Red)
	b = mustApply(t, b, 2, SizeP, Red)
	if !HasWin(b, Red) {
		t.Fatal("red P row should win while visible")
	}
	// Covering one cell breaks the visible line.
	b = mustApply(t, b, 2, SizeG, Blue)
	if HasWin(b, Red) {
		t.Error("covered red piece must not count toward a line")
	}
}

func TestHasWinNestedCellIsNotALine(t *testing.T) {
	// Three red pieces nested in a single cell: no row, no win.
	var b Board
	b = mustApply(t, b, 4, SizeP, Red)
	b = mustApply(t, b, 4, SizeM, Red)
	b = mustApply(t, b, 4, SizeG, Red)
	if HasWin(b, Red) {
		t.Error("a fully nested cell is not a winning line")
	}
}

func TestHasWinDiagonals(t *testing.T) {
	var b Board
	for _, cell := range []int{0, 4, 8} {
		b = mustApply(t, b, cell, SizeG, Yellow)
	}
	if !HasWin(b, Yellow) {
		t.Error("diagonal 0-4-8 should win")
	}
	var b2 Board
	for _, cell := range []int{2, 4, 6} {
		b2 = mustApply(t, b2, cell, SizeM, Green)
	}
	if !HasWin(b2, Green) {
		t.Error("diagonal 2-4-6 should win")
	}
}

func TestInventory(t *testing.T) {
	inv := NewInventory()
	for s := SizeP; s <= SizeG; s++ {
		if inv.Count(s) != 3 {
			t.Fatalf("fresh inventory should hold 3 of %v", s)
		}
	}
	for i := 0; i < 3; i++ {
		if !inv.Use(SizeP) {
			t.Fatalf("Use #%d should succeed", i+1)
		}
	}
	if inv.Use(SizeP) {
		t.Error("fourth Use of P should fail")
	}
	if inv.Count(SizeM) != 3 {
		t.Error("M count should be untouched")
	}
}

func TestAnyLegalMove(t *testing.T) {
	var b Board
	inv := NewInventory()
	if !AnyLegalMove(b, inv) {
		t.Fatal("empty board, full inventory: moves exist")
	}

	if AnyLegalMove(b, Inventory{}) {
		t.Error("empty inventory: no moves")
	}

	// Only P pieces left while every P slot is taken.
	for cell := 0; cell < NumCells; cell++ {
		b = mustApply(t, b, cell, SizeP, Red)
	}
	if AnyLegalMove(b, Inventory{3, 0, 0}) {
		t.Error("all P slots occupied: no P move exists")
	}
	if !AnyLegalMove(b, Inventory{0, 1, 0}) {
		t.Error("M slots are still open")
	}
}

func TestColorPalette(t *testing.T) {
	want := []Color{Red, Blue, Green, Yellow}
	if len(Palette) != len(want) {
		t.Fatalf("palette size = %d, want %d", len(Palette), len(want))
	}
	for i, c := range want {
		if Palette[i] != c {
			t.Errorf("Palette[%d] = %v, want %v", i, Palette[i], c)
		}
		if !c.Valid() {
			t.Errorf("%v should be valid", c)
		}
	}
	if Color("purple").Valid() {
		t.Error("purple is not in the palette")
	}
}
