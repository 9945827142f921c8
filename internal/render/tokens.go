package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// token SVGs share a 100x100 view box.
const (
	svgCross = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
<path d="M22 22 L78 78 M78 22 L22 78" stroke="#e0455b" stroke-width="14" stroke-linecap="round" fill="none"/></svg>`
	svgRing = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
<circle cx="50" cy="50" r="29" stroke="#3d7be0" stroke-width="13" fill="none"/></svg>`
	svgCardBack = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
<rect x="6" y="6" width="88" height="88" rx="12" ry="12" fill="#394173" stroke="#5e6ab0" stroke-width="4"/>
<path d="M50 24 L76 50 L50 76 L24 50 Z" fill="none" stroke="#8a94d8" stroke-width="4"/></svg>`
	svgCardFront = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
<rect x="6" y="6" width="88" height="88" rx="12" ry="12" fill="%s" stroke="#c9cbd8" stroke-width="4"/>%s</svg>`
	svgDisc = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
<circle cx="50" cy="50" r="40" fill="%s" stroke="%s" stroke-width="6"/></svg>`
)

var (
	discA = fmt.Sprintf(svgDisc, "#e23b3b", "#a52222")
	discB = fmt.Sprintf(svgDisc, "#f4c430", "#c49a12")
)

var faceColors = [...]string{
	"#e23b3b", "#f08a24", "#d8b21c", "#3fae49", "#1f9e9a",
	"#2f6fe0", "#7446d8", "#c23fb4", "#7a5230", "#4a4f5c",
}

// faceSymbol draws face f as one of five shapes in one of ten colors.
func faceSymbol(f int) string {
	c := faceColors[f%len(faceColors)]
	switch f % 5 {
	case 0:
		return fmt.Sprintf(`<circle cx="50" cy="50" r="24" fill="%s"/>`, c)
	case 1:
		return fmt.Sprintf(`<rect x="28" y="28" width="44" height="44" fill="%s"/>`, c)
	case 2:
		return fmt.Sprintf(`<path d="M50 24 L76 72 L24 72 Z" fill="%s"/>`, c)
	case 3:
		return fmt.Sprintf(`<path d="M50 22 L76 50 L50 78 L24 50 Z" fill="%s"/>`, c)
	default:
		return fmt.Sprintf(`<path d="M50 22 L57 42 L78 42 L61 55 L68 76 L50 63 L32 76 L39 55 L22 42 L43 42 Z" fill="%s"/>`, c)
	}
}

func cardFront(face int, matched bool) string {
	bg := "#f7f7fb"
	if matched {
		bg = "#dfe6d8"
	}
	return fmt.Sprintf(svgCardFront, bg, faceSymbol(face))
}

type tokenCacheKey struct {
	svg  string
	size int
}

var (
	tokenCache   = map[tokenCacheKey]image.Image{}
	tokenCacheMu sync.RWMutex
)

// rasterize renders an SVG token at size x size and caches the result.
func rasterize(svg string, size int) (image.Image, error) {
	key := tokenCacheKey{svg: svg, size: size}

	tokenCacheMu.RLock()
	if img, ok := tokenCache[key]; ok {
		tokenCacheMu.RUnlock()
		return img, nil
	}
	tokenCacheMu.RUnlock()

	icon, err := oksvg.ReadIconStream(bytes.NewReader([]byte(svg)))
	if err != nil {
		return nil, fmt.Errorf("parse token svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	tokenCacheMu.Lock()
	tokenCache[key] = img
	tokenCacheMu.Unlock()
	return img, nil
}
