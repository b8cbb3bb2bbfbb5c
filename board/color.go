package board

// Color is a player color. Colors are assigned from Palette in order
// on room join and are unique within a room.
type Color string

const (
	Red    Color = "red"
	Blue   Color = "blue"
	Green  Color = "green"
	Yellow Color = "yellow"
)

// Palette is the ordered assignment palette.
var Palette = []Color{Red, Blue, Green, Yellow}

func (c Color) Valid() bool {
	for _, p := range Palette {
		if c == p {
			return true
		}
	}
	return false
}

func (c Color) String() string { return string(c) }
