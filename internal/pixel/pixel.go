// Package pixel holds shared RGBA frame helpers used by the decode, sink and
// device layers.
package pixel

import (
	"image"
	stddraw "image/draw"
	"math"

	"golang.org/x/image/draw"

	"camrelay/receiver/internal/domain"
)

// Wrap exposes a domain frame as an *image.RGBA without copying.
func Wrap(f domain.VideoFrame) *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: 4 * f.Width,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// FromImage converts any image into a packed RGBA domain frame.
func FromImage(img image.Image) domain.VideoFrame {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	stddraw.Draw(dst, dst.Rect, img, b.Min, stddraw.Src)
	return domain.VideoFrame{Width: b.Dx(), Height: b.Dy(), Pix: dst.Pix}
}

// Resize scales a frame to width x height with bilinear filtering.
func Resize(f domain.VideoFrame, width, height int) domain.VideoFrame {
	if f.Width == width && f.Height == height {
		return f
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Rect, Wrap(f), Wrap(f).Rect, draw.Src, nil)
	return domain.VideoFrame{Width: width, Height: height, Pix: dst.Pix, CaptureTime: f.CaptureTime}
}

// ScaleToHeight resizes a frame to the target height preserving aspect ratio.
// The new width is round(w * target / h).
func ScaleToHeight(f domain.VideoFrame, target int) domain.VideoFrame {
	if f.Height == target || f.Height == 0 {
		return f
	}
	width := int(math.Round(float64(f.Width) * float64(target) / float64(f.Height)))
	return Resize(f, width, target)
}

// Flat returns a single-color frame. Used as the idle placeholder when the
// camera pacer has nothing to emit.
func Flat(width, height int, r, g, b uint8) domain.VideoFrame {
	pix := make([]byte, 4*width*height)
	for i := 0; i < len(pix); i += 4 {
		pix[i] = r
		pix[i+1] = g
		pix[i+2] = b
		pix[i+3] = 0xff
	}
	return domain.VideoFrame{Width: width, Height: height, Pix: pix}
}

// ToRGB24 strips the alpha channel, yielding the packed RGB byte order the
// v4l2 output device consumes.
func ToRGB24(f domain.VideoFrame) []byte {
	out := make([]byte, 3*f.Width*f.Height)
	for i, j := 0, 0; i < len(f.Pix); i, j = i+4, j+3 {
		out[j] = f.Pix[i]
		out[j+1] = f.Pix[i+1]
		out[j+2] = f.Pix[i+2]
	}
	return out
}
