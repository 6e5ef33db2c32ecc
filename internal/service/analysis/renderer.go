package analysis

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"math"

	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/chess-metrics/internal/board"
	"github.com/park285/chess-metrics/internal/position"
)

// PinLine joins a pinning piece to the king it pins against.
type PinLine struct {
	From board.Square
	To   board.Square
}

// Annotations marks metric results on a rendered board.
type Annotations struct {
	Pinned   []board.Square
	Hanging  []board.Square
	PinLines []PinLine
}

type BoardRenderer interface {
	RenderSVG(ctx context.Context, snap *position.Snapshot, ann Annotations) ([]byte, error)
	RenderPNG(ctx context.Context, snap *position.Snapshot, ann Annotations) ([]byte, error)
}

const (
	squareSize  = 60
	boardMargin = 24
	boardSize   = squareSize * 8
	canvasSize  = boardSize + boardMargin*2
	pieceInset  = 4
)

var (
	lightSquare         = color.RGBA{233, 207, 163, 255}
	darkSquare          = color.RGBA{187, 136, 96, 255}
	backgroundColor     = color.RGBA{28, 31, 46, 255}
	hangingFill         = color.NRGBA{R: 224, G: 72, B: 62, A: 150}
	pinnedOutline       = color.NRGBA{R: 61, G: 139, B: 253, A: 255}
	pinLineColor        = color.NRGBA{R: 61, G: 139, B: 253, A: 170}
	coordinateTextColor = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

type boardRenderer struct{}

func NewBoardRenderer() BoardRenderer {
	return &boardRenderer{}
}

func (r *boardRenderer) RenderSVG(ctx context.Context, snap *position.Snapshot, ann Annotations) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(canvasSize, canvasSize)
	canvas.Title(snap.FEN())
	canvas.Rect(0, 0, canvasSize, canvasSize, "fill:"+hexColor(backgroundColor))

	for sq := board.A1; sq <= board.H8; sq++ {
		x, y := squareOrigin(sq)
		canvas.Rect(x, y, squareSize, squareSize, "fill:"+hexColor(squareColor(sq)))
	}
	for _, sq := range ann.Hanging {
		x, y := squareOrigin(sq)
		canvas.Rect(x, y, squareSize, squareSize, fmt.Sprintf("fill:%s;fill-opacity:0.6", nrgbaHex(hangingFill)))
	}
	for _, p := range snap.Pieces() {
		x, y := squareOrigin(p.Square)
		scale := float64(squareSize-2*pieceInset) / 100
		canvas.Gtransform(fmt.Sprintf("translate(%d,%d) scale(%.2f)", x+pieceInset, y+pieceInset, scale))
		if err := drawPieceShape(canvas, p.Type, p.Color); err != nil {
			return nil, err
		}
		canvas.Gend()
	}
	for _, sq := range ann.Pinned {
		x, y := squareOrigin(sq)
		canvas.Rect(x+2, y+2, squareSize-4, squareSize-4, "fill:none;stroke:"+nrgbaHex(pinnedOutline)+";stroke-width:4")
	}
	for _, l := range ann.PinLines {
		x1, y1 := squareCenter(l.From)
		x2, y2 := squareCenter(l.To)
		canvas.Line(x1, y1, x2, y2, "stroke:"+nrgbaHex(pinLineColor)+";stroke-width:5;stroke-opacity:0.7;stroke-linecap:round")
	}

	textStyle := "font-family:monospace;font-size:13px;text-anchor:middle;fill:" + nrgbaHex(coordinateTextColor)
	for i := 0; i < 8; i++ {
		file := string(rune('a' + i))
		rank := string(rune('1' + i))
		cx := boardMargin + i*squareSize + squareSize/2
		cy := boardMargin + (7-i)*squareSize + squareSize/2
		canvas.Text(cx, boardMargin+boardSize+boardMargin*2/3, file, textStyle)
		canvas.Text(boardMargin/2, cy+5, rank, textStyle)
	}
	canvas.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *boardRenderer) RenderPNG(ctx context.Context, snap *position.Snapshot, ann Annotations) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is nil")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	img := image.NewRGBA(image.Rect(0, 0, canvasSize, canvasSize))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	origin := image.Point{X: boardMargin, Y: boardMargin}
	drawSquares(img, origin)
	for _, sq := range ann.Hanging {
		drawSquareOverlay(img, sq, origin, hangingFill)
	}
	if err := drawPieces(img, snap, origin); err != nil {
		return nil, err
	}
	for _, sq := range ann.Pinned {
		drawSquareOutline(img, sq, origin, 3, pinnedOutline)
	}
	for _, l := range ann.PinLines {
		drawArrow(img, l.From, l.To, origin, pinLineColor)
	}
	drawCoordinates(img, origin)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var pngBuf bytes.Buffer
	if err := png.Encode(&pngBuf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return pngBuf.Bytes(), nil
}

func squareOrigin(sq board.Square) (int, int) {
	return boardMargin + sq.File()*squareSize, boardMargin + (7-sq.Rank())*squareSize
}

func squareCenter(sq board.Square) (int, int) {
	x, y := squareOrigin(sq)
	return x + squareSize/2, y + squareSize/2
}

func squareRect(sq board.Square, origin image.Point) image.Rectangle {
	row := 7 - sq.Rank()
	x := origin.X + sq.File()*squareSize
	y := origin.Y + row*squareSize
	return image.Rect(x, y, x+squareSize, y+squareSize)
}

func squareColor(sq board.Square) color.RGBA {
	if (sq.File()+sq.Rank())%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

func nrgbaHex(c color.NRGBA) string {
	return hexColor(color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
}

func drawSquares(dst imagedraw.Image, origin image.Point) {
	for sq := board.A1; sq <= board.H8; sq++ {
		imagedraw.Draw(dst, squareRect(sq, origin), image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
	}
}

func drawPieces(dst imagedraw.Image, snap *position.Snapshot, origin image.Point) error {
	size := squareSize - 2*pieceInset
	for _, p := range snap.Pieces() {
		pieceImg, err := renderPieceImage(p.Type, p.Color, size)
		if err != nil {
			return err
		}
		rect := squareRect(p.Square, origin).Inset(pieceInset)
		imagedraw.Draw(dst, rect, pieceImg, image.Point{}, imagedraw.Over)
	}
	return nil
}

func drawSquareOverlay(img *image.RGBA, sq board.Square, origin image.Point, clr color.Color) {
	rect := squareRect(sq, origin)
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func drawSquareOutline(img *image.RGBA, sq board.Square, origin image.Point, width int, clr color.Color) {
	rect := squareRect(sq, origin)
	edges := []image.Rectangle{
		image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+width),
		image.Rect(rect.Min.X, rect.Max.Y-width, rect.Max.X, rect.Max.Y),
		image.Rect(rect.Min.X, rect.Min.Y+width, rect.Min.X+width, rect.Max.Y-width),
		image.Rect(rect.Max.X-width, rect.Min.Y+width, rect.Max.X, rect.Max.Y-width),
	}
	for _, e := range edges {
		imagedraw.Draw(img, e, image.NewUniform(clr), image.Point{}, imagedraw.Over)
	}
}

func drawArrow(img *image.RGBA, from, to board.Square, origin image.Point, clr color.Color) {
	if from == to {
		return
	}
	startRect := squareRect(from, origin)
	endRect := squareRect(to, origin)
	start := image.Point{X: startRect.Min.X + squareSize/2, Y: startRect.Min.Y + squareSize/2}
	end := image.Point{X: endRect.Min.X + squareSize/2, Y: endRect.Min.Y + squareSize/2}

	dx := float64(end.X - start.X)
	dy := float64(end.Y - start.Y)
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}

	dirX := dx / length
	dirY := dy / length
	perpX := -dirY
	perpY := dirX

	baseLength := length - float64(squareSize)*0.45
	if baseLength < float64(squareSize)*0.35 {
		baseLength = length * 0.6
	}
	halfWidth := float64(squareSize) * 0.08
	headWidth := float64(squareSize) * 0.32

	baseX := float64(start.X) + dirX*baseLength
	baseY := float64(start.Y) + dirY*baseLength

	fillQuad(img,
		pointF{X: float64(start.X) - perpX*halfWidth, Y: float64(start.Y) - perpY*halfWidth},
		pointF{X: float64(start.X) + perpX*halfWidth, Y: float64(start.Y) + perpY*halfWidth},
		pointF{X: baseX + perpX*halfWidth, Y: baseY + perpY*halfWidth},
		pointF{X: baseX - perpX*halfWidth, Y: baseY - perpY*halfWidth},
		clr,
	)
	fillTriangleF(img,
		pointF{X: float64(end.X), Y: float64(end.Y)},
		pointF{X: baseX - perpX*headWidth/2, Y: baseY - perpY*headWidth/2},
		pointF{X: baseX + perpX*headWidth/2, Y: baseY + perpY*headWidth/2},
		clr,
	)
}

func drawCoordinates(dst imagedraw.Image, origin image.Point) {
	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(coordinateTextColor),
		Face: face,
	}
	ascent := face.Metrics().Ascent.Ceil()
	boardEndY := origin.Y + boardSize

	for i := 0; i < 8; i++ {
		rankCenter := origin.Y + (7-i)*squareSize + squareSize/2
		fileCenter := origin.X + i*squareSize + squareSize/2
		drawCenteredText(drawer, string(rune('1'+i)), origin.X-boardMargin/2, rankCenter+ascent/2)
		drawCenteredText(drawer, string(rune('a'+i)), fileCenter, boardEndY+ascent+4)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

type pointF struct {
	X float64
	Y float64
}

func fillQuad(img *image.RGBA, p0, p1, p2, p3 pointF, clr color.Color) {
	fillTriangleF(img, p0, p1, p2, clr)
	fillTriangleF(img, p0, p2, p3, clr)
}

func fillTriangleF(img *image.RGBA, a, b, c pointF, clr color.Color) {
	minX := int(math.Floor(math.Min(a.X, math.Min(b.X, c.X))))
	maxX := int(math.Ceil(math.Max(a.X, math.Max(b.X, c.X))))
	minY := int(math.Floor(math.Min(a.Y, math.Min(b.Y, c.Y))))
	maxY := int(math.Ceil(math.Max(a.Y, math.Max(b.Y, c.Y))))

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if pointInTriangle(float64(x)+0.5, float64(y)+0.5, a, b, c) {
				blendPixel(img, x, y, clr)
			}
		}
	}
}

func pointInTriangle(x, y float64, a, b, c pointF) bool {
	denom := (b.Y-c.Y)*(a.X-c.X) + (c.X-b.X)*(a.Y-c.Y)
	if denom == 0 {
		return false
	}
	alpha := ((b.Y-c.Y)*(x-c.X) + (c.X-b.X)*(y-c.Y)) / denom
	beta := ((c.Y-a.Y)*(x-c.X) + (a.X-c.X)*(y-c.Y)) / denom
	gamma := 1 - alpha - beta
	return alpha >= 0 && beta >= 0 && gamma >= 0
}

// blendPixel composites clr over the pixel at (x, y).
func blendPixel(img *image.RGBA, x, y int, clr color.Color) {
	if !(image.Point{X: x, Y: y}).In(img.Bounds()) {
		return
	}
	sr, sg, sb, sa := clr.RGBA()
	if sa == 0 {
		return
	}
	dst := img.RGBAAt(x, y)
	inv := 65535 - sa
	img.SetRGBA(x, y, color.RGBA{
		R: uint8((sr + uint32(dst.R)*0x101*inv/65535) >> 8),
		G: uint8((sg + uint32(dst.G)*0x101*inv/65535) >> 8),
		B: uint8((sb + uint32(dst.B)*0x101*inv/65535) >> 8),
		A: uint8((sa + uint32(dst.A)*0x101*inv/65535) >> 8),
	})
}
