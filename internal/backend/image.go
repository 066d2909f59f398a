package backend

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"

	_ "image/jpeg"

	_ "golang.org/x/image/webp"
)

// sniffMime inspects magic bytes and returns the image MIME type, or ""
// when the data is not a recognized image format.
func sniffMime(data []byte) string {
	switch {
	case len(data) >= 8 && bytes.Equal(data[:8], []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	case len(data) >= 3 && bytes.Equal(data[:3], []byte("\xff\xd8\xff")):
		return "image/jpeg"
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp"
	default:
		return ""
	}
}

// decodeImage parses PNG, JPEG, or WEBP data.
func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("backend: decode image: %w", err)
	}
	return img, nil
}

// mergeImages lays the images out side by side on a white canvas. The API
// edit endpoint takes a single image, so a batch is flattened into one
// before the call.
func mergeImages(imgs []image.Image) image.Image {
	if len(imgs) == 1 {
		return imgs[0]
	}
	var width, height int
	for _, img := range imgs {
		b := img.Bounds()
		width += b.Dx()
		if b.Dy() > height {
			height = b.Dy()
		}
	}
	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)
	x := 0
	for _, img := range imgs {
		b := img.Bounds()
		dst := image.Rect(x, 0, x+b.Dx(), b.Dy())
		draw.Draw(canvas, dst, img, b.Min, draw.Src)
		x += b.Dx()
	}
	return canvas
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("backend: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// preparePayload decodes every image, merges a multi-image batch into one
// canvas, and re-encodes the result as PNG for upload.
func preparePayload(images [][]byte) ([]byte, error) {
	imgs := make([]image.Image, 0, len(images))
	for _, data := range images {
		img, err := decodeImage(data)
		if err != nil {
			return nil, err
		}
		imgs = append(imgs, img)
	}
	return encodePNG(mergeImages(imgs))
}
