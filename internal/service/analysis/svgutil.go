package analysis

import (
	"bytes"
	"fmt"
	"image/color"
)

func styleAttr(fill, stroke string, width int) string {
	return fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%d", fill, stroke, width)
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// sanitizeSVG normalizes style declarations so oksvg accepts them.
func sanitizeSVG(svg []byte) []byte {
	fixed := bytes.ReplaceAll(svg, []byte("fill: #"), []byte("fill:#"))
	fixed = bytes.ReplaceAll(fixed, []byte("stroke: #"), []byte("stroke:#"))
	fixed = bytes.ReplaceAll(fixed, []byte("; "), []byte(";"))
	return fixed
}
