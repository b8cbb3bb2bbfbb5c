// Package board holds the pure 3x3 board primitives: legality, move
// application, visible-piece computation and win/draw detection. All
// operations are side-effect free; Board has value semantics.
package board

import "fmt"

// Size is a piece size. Larger sizes hide smaller ones in a cell.
type Size int

const (
	SizeP Size = iota // small
	SizeM             // medium
	SizeG             // large

	NumSizes = 3
)

var sizeNames = [NumSizes]string{"P", "M", "G"}

func (s Size) Valid() bool { return s >= SizeP && s <= SizeG }

func (s Size) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Size(%d)", int(s))
	}
	return sizeNames[s]
}

// ParseSize accepts the wire spelling 'P' | 'M' | 'G'.
func ParseSize(raw string) (Size, bool) {
	switch raw {
	case "P":
		return SizeP, true
	case "M":
		return SizeM, true
	case "G":
		return SizeG, true
	}
	return 0, false
}

const NumCells = 9

// Cell is one board position. Each size slot independently holds at
// most one color; the zero value is an empty cell.
type Cell struct {
	slots [NumSizes]Color
}

// Piece returns the color occupying the given size slot, if any.
func (c Cell) Piece(s Size) (Color, bool) {
	if !s.Valid() || c.slots[s] == "" {
		return "", false
	}
	return c.slots[s], true
}

// Visible returns the color of the largest occupied slot (G over M
// over P). Only the visible piece participates in win detection.
func (c Cell) Visible() (Color, bool) {
	for s := SizeG; s >= SizeP; s-- {
		if c.slots[s] != "" {
			return c.slots[s], true
		}
	}
	return "", false
}

// Board is the 3x3 grid, cells addressed 0..8 row-major.
type Board [NumCells]Cell

// IsLegal reports whether a piece of the given size may be placed on
// the cell: the cell is in range and that size slot is empty. Color is
// deliberately not checked; different sizes may mix within one cell.
func IsLegal(b Board, cell int, s Size) bool {
	if cell < 0 || cell >= NumCells || !s.Valid() {
		return false
	}
	return b[cell].slots[s] == ""
}

// Apply returns a new board with the slot set, or ErrIllegalMove if
// IsLegal would reject the placement.
func Apply(b Board, cell int, s Size, color Color) (Board, error) {
	if !IsLegal(b, cell, s) {
		return b, ErrIllegalMove
	}
	b[cell].slots[s] = color
	return b, nil
}

// The 8 win lines: 3 rows, 3 columns, 2 diagonals.
var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// HasWin reports whether any line shows three visible pieces of the
// given color. This is the single win condition; size-order and
// fully-nested alignments count only when they are what is visible.
func HasWin(b Board, color Color) bool {
	for _, line := range lines {
		won := true
		for _, cell := range line {
			v, ok := b[cell].Visible()
			if !ok || v != color {
				won = false
				break
			}
		}
		if won {
			return true
		}
	}
	return false
}

// Inventory counts the unplaced pieces per size. A fresh seat holds
// three of each.
type Inventory [NumSizes]int

func NewInventory() Inventory { return Inventory{3, 3, 3} }

func (inv Inventory) Count(s Size) int {
	if !s.Valid() {
		return 0
	}
	return inv[s]
}

// Use decrements the count for a size; false when none remain.
func (inv *Inventory) Use(s Size) bool {
	if !s.Valid() || inv[s] <= 0 {
		return false
	}
	inv[s]--
	return true
}

// AnyLegalMove reports whether some (cell, size) placement exists for
// the inventory. O(27) worst case.
func AnyLegalMove(b Board, inv Inventory) bool {
	for s := SizeP; s <= SizeG; s++ {
		if inv[s] <= 0 {
			continue
		}
		for cell := 0; cell < NumCells; cell++ {
			if b[cell].slots[s] == "" {
				return true
			}
		}
	}
	return false
}
