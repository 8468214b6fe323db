// Package qrimage renders QR symbols for link texts. Rendering is a pure
// function of its inputs: the package holds no state and performs no I/O, so
// callers decide whether the result is streamed to a client or cached on
// disk.
package qrimage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/patric-chuzhbe/qrvault/internal/models"
)

const (
	// BoxSize is the rendered width of a single QR module in pixels.
	BoxSize = 10

	// CaptionBandHeight is the extra vertical space appended below the
	// symbol when a caption is requested.
	CaptionBandHeight = 40

	captionInsetX = 10
	captionInsetY = 10

	// maxCaptionChars is the display-only truncation threshold. The encoded
	// link itself is never truncated.
	maxCaptionChars      = 40
	truncatedCaptionSize = 37
)

// Render encodes text into a QR symbol at the lowest error-correction level
// with a quiet zone of four modules. When withCaption is true, the canvas is
// extended by CaptionBandHeight pixels below the symbol and a truncated
// display form of text is drawn into the band.
func Render(text string, withCaption bool) (image.Image, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", models.ErrInvalidInput)
	}

	qr, err := qrcode.New(text, qrcode.Low)
	if err != nil {
		return nil, fmt.Errorf("in internal/qrimage/qrimage.go/Render(): error while `qrcode.New()` calling: %w", err)
	}

	// Bitmap() includes the quiet zone, so sizing by its module count keeps
	// every module exactly BoxSize pixels wide.
	modules := len(qr.Bitmap())
	symbol := qr.Image(modules * BoxSize)

	if !withCaption {
		return symbol, nil
	}

	return addCaptionBand(symbol, text), nil
}

// EncodePNG serializes an image into an in-memory PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("in internal/qrimage/qrimage.go/EncodePNG(): error while `png.Encode()` calling: %w", err)
	}

	return buf.Bytes(), nil
}

// RenderPNG is a convenience wrapper combining Render and EncodePNG.
func RenderPNG(text string, withCaption bool) ([]byte, error) {
	img, err := Render(text, withCaption)
	if err != nil {
		return nil, err
	}

	return EncodePNG(img)
}

func addCaptionBand(symbol image.Image, text string) image.Image {
	bounds := symbol.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	canvas := image.NewRGBA(image.Rect(0, 0, width, height+CaptionBandHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(canvas, bounds, symbol, bounds.Min, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot: fixed.P(
			captionInsetX,
			height+captionInsetY+face.Metrics().Ascent.Ceil(),
		),
	}
	drawer.DrawString(CaptionText(text))

	return canvas
}

// CaptionText returns the display form of a link for the caption band:
// links of maxCaptionChars characters or more are cut to
// truncatedCaptionSize characters plus an ellipsis.
func CaptionText(text string) string {
	runes := []rune(text)
	if len(runes) < maxCaptionChars {
		return text
	}

	return string(runes[:truncatedCaptionSize]) + "..."
}
