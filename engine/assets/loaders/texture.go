package loaders

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

type TextureLoader struct{}

func (tl *TextureLoader) Load(name string, r io.Reader) (*Resource, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	rgba := ToRGBA(img)
	return &Resource{
		Name:     name,
		FullPath: name,
		Type:     ResourceTypeImage,
		DataSize: uint64(len(rgba.Pix)),
		Data:     rgba,
	}, nil
}

// ToRGBA returns img as tightly packed 8-bit RGBA with its origin at 0,0.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
