package color

// Color is the display styling of a calendar entry
type Color struct {
	Background string `json:"backgroundColor,omitempty"`
	Border     string `json:"borderColor,omitempty"`
	Text       string `json:"textColor,omitempty"`
}

// palette order is part of the contract: the same index must always yield the same color
var palette = []string{
	"rgba(239, 68, 68, 0.8)",  // red
	"rgba(22, 163, 74, 0.8)",  // green
	"rgba(37, 99, 235, 0.8)",  // blue
	"rgba(250, 204, 21, 0.8)", // yellow
	"rgba(128, 0, 128, 0.8)",  // purple
	"rgba(236, 72, 153, 0.8)", // pink
	"rgba(75, 0, 130, 0.8)",   // indigo
	"rgba(0, 128, 128, 0.8)",  // teal
	"rgba(255, 165, 0, 0.8)",  // orange
	"rgba(0, 255, 255, 0.8)",  // cyan
}

// Draft is the styling of the viewer's own unsubmitted entries
var Draft = Color{Background: "#47b06cff", Border: "#0d3f1fff", Text: "#000000ff"}

// Busy is the styling of read-only entries from an external calendar feed
var Busy = Color{Background: "rgba(107, 114, 128, 0.5)", Border: "rgba(107, 114, 128, 0.8)"}

// PaletteSize returns the number of distinct participant colors
func PaletteSize() int {
	return len(palette)
}

// Assign maps an ordinal position onto the palette, cycling via index mod size.
// Negative indexes wrap from the end.
func Assign(index int) Color {
	n := len(palette)
	bg := palette[((index%n)+n)%n]
	return Color{Background: bg, Border: bg}
}
