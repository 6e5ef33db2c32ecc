package analysis

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	svg "github.com/ajstarks/svgo"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/park285/chess-metrics/internal/board"
)

// Piece silhouettes on a 100x100 grid.
var pieceOutlines = map[board.PieceType][][2]int{
	board.Pawn:   {{38, 52}, {62, 52}, {70, 82}, {30, 82}},
	board.Rook:   {{28, 22}, {38, 22}, {38, 30}, {46, 30}, {46, 22}, {54, 22}, {54, 30}, {62, 30}, {62, 22}, {72, 22}, {72, 38}, {66, 42}, {66, 74}, {72, 82}, {28, 82}, {34, 74}, {34, 42}, {28, 38}},
	board.Knight: {{34, 82}, {38, 60}, {30, 52}, {34, 36}, {48, 20}, {56, 26}, {70, 40}, {72, 56}, {64, 58}, {58, 50}, {56, 62}, {68, 82}},
	board.Bishop: {{50, 18}, {64, 38}, {60, 58}, {66, 82}, {34, 82}, {40, 58}, {36, 38}},
	board.Queen:  {{22, 30}, {36, 50}, {40, 24}, {50, 46}, {60, 24}, {64, 50}, {78, 30}, {70, 82}, {30, 82}},
	board.King:   {{46, 10}, {54, 10}, {54, 18}, {62, 18}, {62, 26}, {54, 26}, {54, 34}, {70, 42}, {66, 82}, {34, 82}, {30, 42}, {46, 34}, {46, 26}, {38, 26}, {38, 18}, {46, 18}},
}

func pieceColors(c board.Color) (fill, stroke string) {
	if c == board.White {
		return "#f8f8f2", "#1b1b1b"
	}
	return "#232323", "#e6e6e6"
}

// drawPieceShape emits one piece in 100x100 local coordinates.
func drawPieceShape(canvas *svg.SVG, pt board.PieceType, c board.Color) error {
	outline, ok := pieceOutlines[pt]
	if !ok {
		return fmt.Errorf("no outline for %s", pt)
	}
	fill, stroke := pieceColors(c)
	style := styleAttr(fill, stroke, 3)

	xs := make([]int, len(outline))
	ys := make([]int, len(outline))
	for i, p := range outline {
		xs[i], ys[i] = p[0], p[1]
	}
	canvas.Polygon(xs, ys, style)
	if pt == board.Pawn || pt == board.Bishop {
		canvas.Circle(50, 40, 12, style)
	}
	canvas.Rect(26, 82, 48, 8, style)
	return nil
}

// pieceIconSVG draws one piece as a standalone SVG document.
func pieceIconSVG(pt board.PieceType, c board.Color) ([]byte, error) {
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(100, 100, `viewBox="0 0 100 100"`)
	if err := drawPieceShape(canvas, pt, c); err != nil {
		return nil, err
	}
	canvas.End()
	return sanitizeSVG(buf.Bytes()), nil
}

type pieceCacheKey struct {
	pt    board.PieceType
	color board.Color
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func renderPieceImage(pt board.PieceType, c board.Color, size int) (image.Image, error) {
	key := pieceCacheKey{pt: pt, color: c, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	data, err := pieceIconSVG(pt, c)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}
