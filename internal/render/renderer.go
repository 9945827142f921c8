package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/park285/critter-kakao-bot/internal/board"
	"github.com/park285/critter-kakao-bot/internal/duel"
)

// Options carries the HUD lines. The bundled face is ASCII only, so callers pass
// romanized or numeric text here and keep Korean for the chat message.
type Options struct {
	Header string
	Status string
	Score  string
}

type Renderer struct {
	cellSize int
	face     font.Face
}

func NewRenderer() *Renderer {
	return &Renderer{cellSize: 72, face: basicfont.Face7x13}
}

const (
	sideMargin   = 36
	topMargin    = 104
	bottomMargin = 40
	panelRadius  = 10
	panelHeight  = 30
	panelGap     = 10
	gapToBoard   = 18
	cellPadding  = 6
)

var (
	backgroundColor = color.RGBA{22, 24, 36, 255}
	gridCellColor   = color.RGBA{236, 226, 204, 255}
	gridLineColor   = color.RGBA{160, 140, 110, 255}
	dropBoardColor  = color.RGBA{34, 84, 178, 255}
	holeColor       = color.RGBA{18, 24, 48, 255}
	pairTableColor  = color.RGBA{40, 92, 64, 255}
	lastMoveColor   = color.NRGBA{R: 255, G: 228, B: 120, A: 110}
	winRunColor     = color.NRGBA{R: 90, G: 220, B: 130, A: 150}
	pickedColor     = color.NRGBA{R: 255, G: 210, B: 60, A: 255}
	hudPanelColor   = color.NRGBA{R: 28, G: 31, B: 46, A: 250}
	hudShadowColor  = color.NRGBA{0, 0, 0, 50}
	hudTextPrimary  = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	hudTextMuted    = color.NRGBA{R: 204, G: 210, B: 236, A: 255}
	hintTextColor   = color.NRGBA{R: 120, G: 110, B: 90, A: 255}
	coordTextColor  = color.NRGBA{R: 8, G: 214, B: 120, A: 255}
)

// RenderPNG draws the board of v with a HUD on top.
func (r *Renderer) RenderPNG(ctx context.Context, v duel.View, opts Options) ([]byte, error) {
	shape := v.Kind.Shape()
	if !v.Kind.Valid() {
		return nil, fmt.Errorf("render: %w", duel.ErrInvalidKind)
	}
	if v.Kind == board.PairMatching && len(v.Cards) != shape.Rows {
		return nil, fmt.Errorf("render: card snapshot has %d rows", len(v.Cards))
	}
	if v.Kind != board.PairMatching && len(v.Marks) != shape.Rows {
		return nil, fmt.Errorf("render: mark snapshot has %d rows", len(v.Marks))
	}

	cs := r.cellSize
	boardRect := image.Rect(sideMargin, topMargin, sideMargin+shape.Cols*cs, topMargin+shape.Rows*cs)
	img := image.NewRGBA(image.Rect(0, 0, boardRect.Max.X+sideMargin, boardRect.Max.Y+bottomMargin))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r.drawHUD(img, boardRect, opts)
	var err error
	switch v.Kind {
	case board.ThreeInRow:
		err = r.drawMarkGrid(img, boardRect, v)
	case board.GravityDrop:
		err = r.drawDropBoard(img, boardRect, v)
	case board.PairMatching:
		err = r.drawCards(img, boardRect, v)
	}
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) cellRect(boardRect image.Rectangle, p board.Pos) image.Rectangle {
	x := boardRect.Min.X + p.Col*r.cellSize
	y := boardRect.Min.Y + p.Row*r.cellSize
	return image.Rect(x, y, x+r.cellSize, y+r.cellSize)
}

func (r *Renderer) drawToken(img *image.RGBA, rect image.Rectangle, svg string) error {
	size := rect.Dx() - cellPadding*2
	tok, err := rasterize(svg, size)
	if err != nil {
		return err
	}
	at := rect.Min.Add(image.Pt(cellPadding, cellPadding))
	imagedraw.Draw(img, image.Rectangle{Min: at, Max: at.Add(image.Pt(size, size))}, tok, image.Point{}, imagedraw.Over)
	return nil
}

func (r *Renderer) overlays(img *image.RGBA, boardRect image.Rectangle, v duel.View) {
	if v.LastMove != nil {
		imagedraw.Draw(img, r.cellRect(boardRect, *v.LastMove), image.NewUniform(lastMoveColor), image.Point{}, imagedraw.Over)
	}
	for _, p := range v.WinningRun {
		imagedraw.Draw(img, r.cellRect(boardRect, p), image.NewUniform(winRunColor), image.Point{}, imagedraw.Over)
	}
}

func (r *Renderer) drawMarkGrid(img *image.RGBA, boardRect image.Rectangle, v duel.View) error {
	imagedraw.Draw(img, boardRect, image.NewUniform(gridCellColor), image.Point{}, imagedraw.Src)
	r.overlays(img, boardRect, v)
	drawer := &font.Drawer{Dst: img, Face: r.face}
	for row, cells := range v.Marks {
		for col, c := range cells {
			rect := r.cellRect(boardRect, board.Pos{Row: row, Col: col})
			drawOutline(img, rect, 1, gridLineColor)
			var err error
			switch c {
			case board.MarkA:
				err = r.drawToken(img, rect, svgCross)
			case board.MarkB:
				err = r.drawToken(img, rect, svgRing)
			default:
				// 빈 칸에는 키패드 번호
				drawCenteredString(drawer, rect, strconv.Itoa(row*len(cells)+col+1), hintTextColor)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Renderer) drawDropBoard(img *image.RGBA, boardRect image.Rectangle, v duel.View) error {
	drawRoundedPanel(img, boardRect.Inset(-6), panelRadius, dropBoardColor)
	r.overlays(img, boardRect, v)
	for row, cells := range v.Marks {
		for col, c := range cells {
			rect := r.cellRect(boardRect, board.Pos{Row: row, Col: col})
			var err error
			switch c {
			case board.MarkA:
				err = r.drawToken(img, rect, discA)
			case board.MarkB:
				err = r.drawToken(img, rect, discB)
			default:
				center := image.Pt(rect.Min.X+rect.Dx()/2, rect.Min.Y+rect.Dy()/2)
				drawDisc(img, center, r.cellSize/2-cellPadding-2, holeColor)
			}
			if err != nil {
				return err
			}
		}
	}
	drawer := &font.Drawer{Dst: img, Face: r.face}
	for col := 0; col < v.Kind.Shape().Cols; col++ {
		rect := r.cellRect(boardRect, board.Pos{Row: v.Kind.Shape().Rows, Col: col})
		rect.Max.Y = rect.Min.Y + bottomMargin
		drawCenteredString(drawer, rect, strconv.Itoa(col+1), coordTextColor)
	}
	return nil
}

func (r *Renderer) drawCards(img *image.RGBA, boardRect image.Rectangle, v duel.View) error {
	drawRoundedPanel(img, boardRect.Inset(-6), panelRadius, pairTableColor)
	drawer := &font.Drawer{Dst: img, Face: r.face}
	for row, cards := range v.Cards {
		for col, c := range cards {
			rect := r.cellRect(boardRect, board.Pos{Row: row, Col: col})
			var err error
			switch c.State {
			case board.FaceDown:
				if err = r.drawToken(img, rect, svgCardBack); err == nil {
					drawCenteredString(drawer, rect, strconv.Itoa(row*len(cards)+col+1), hudTextPrimary)
				}
			default:
				err = r.drawToken(img, rect, cardFront(c.Face, c.State == board.Matched))
			}
			if err != nil {
				return err
			}
		}
	}
	if v.Picked != nil {
		drawOutline(img, r.cellRect(boardRect, *v.Picked).Inset(2), 3, pickedColor)
	}
	if v.Event == duel.EventReveal && v.LastMove != nil {
		drawOutline(img, r.cellRect(boardRect, *v.LastMove).Inset(2), 3, pickedColor)
	}
	return nil
}

func (r *Renderer) drawHUD(img *image.RGBA, boardRect image.Rectangle, opts Options) {
	drawer := &font.Drawer{Dst: img, Face: r.face}
	header := opts.Header
	if header == "" {
		header = "DUEL"
	}

	statusBottom := boardRect.Min.Y - gapToBoard
	statusTop := statusBottom - panelHeight
	headerBottom := statusTop - panelGap
	headerTop := headerBottom - panelHeight

	scoreWidth := 0
	if opts.Score != "" {
		scoreWidth = max(72, drawer.MeasureString(opts.Score).Round()+32)
	}
	headerRect := image.Rect(boardRect.Min.X, headerTop, boardRect.Max.X, headerBottom)
	statusRect := image.Rect(boardRect.Min.X, statusTop, boardRect.Max.X-scoreWidth-panelGap, statusBottom)
	if scoreWidth == 0 {
		statusRect.Max.X = boardRect.Max.X
	}

	for _, rect := range []image.Rectangle{headerRect, statusRect} {
		drawRoundedPanel(img, rect.Add(image.Pt(0, 4)), panelRadius, hudShadowColor)
		drawRoundedPanel(img, rect, panelRadius, hudPanelColor)
	}
	drawCenteredString(drawer, headerRect, truncateWithEllipsis(r.face, header, headerRect.Dx()-24), hudTextPrimary)
	drawCenteredString(drawer, statusRect, truncateWithEllipsis(r.face, opts.Status, statusRect.Dx()-24), hudTextMuted)

	if scoreWidth > 0 {
		scoreRect := image.Rect(boardRect.Max.X-scoreWidth, statusTop, boardRect.Max.X, statusBottom)
		drawRoundedPanel(img, scoreRect.Add(image.Pt(0, 4)), panelRadius, hudShadowColor)
		drawRoundedPanel(img, scoreRect, panelRadius, hudPanelColor)
		drawCenteredString(drawer, scoreRect, opts.Score, hudTextPrimary)
	}
}
