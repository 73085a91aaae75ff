package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Encoder turns a frame into the bytes stored with an inspection record.
type Encoder interface {
	Encode(img image.Image) ([]byte, error)
}

// JPEGEncoder encodes frames as baseline JPEG.
type JPEGEncoder struct {
	Quality int
}

// Encode implements Encoder.
func (e JPEGEncoder) Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, ErrNoFrame
	}
	quality := e.Quality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail decodes an encoded image and scales it to fit inside maxW x maxH,
// keeping the aspect ratio. Images already inside the box are only re-encoded.
func Thumbnail(data []byte, maxW, maxH int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	dst := scaleToFit(src, maxW, maxH)
	return JPEGEncoder{Quality: 80}.Encode(dst)
}

func scaleToFit(src image.Image, maxW, maxH int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if (w <= maxW && h <= maxH) || w == 0 || h == 0 {
		return src
	}

	var tw, th int
	if w*maxH > h*maxW {
		tw, th = maxW, h*maxW/w
	} else {
		tw, th = w*maxH/h, maxH
	}
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
