package serve

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/draw"
)

const (
	maxThumbnailSize        = 2048
	defaultThumbnailQuality = 80
)

// Thumbnailer는 이미지 파일을 maxDim 안에 맞춘 미리보기로 씁니다.
// 처리할 수 없는 형식이면 handled가 false입니다.
type Thumbnailer interface {
	Render(w io.Writer, abs string, maxDim int, quality int) (contentType string, handled bool, err error)
}

// ImageThumbnailer는 JPEG, PNG, GIF를 디코딩해 축소본을 만듭니다
type ImageThumbnailer struct{}

func NewImageThumbnailer() *ImageThumbnailer {
	return &ImageThumbnailer{}
}

func (t *ImageThumbnailer) Render(w io.Writer, abs string, maxDim int, quality int) (string, bool, error) {
	if maxDim <= 0 || maxDim > maxThumbnailSize {
		return "", false, nil
	}
	if quality <= 0 || quality > 100 {
		quality = defaultThumbnailQuality
	}

	f, err := os.Open(abs)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return "", false, nil
	}

	dst := scaleToFit(src, maxDim)
	switch format {
	case "png", "gif":
		if err := png.Encode(w, dst); err != nil {
			return "", true, fmt.Errorf("encode png thumbnail: %w", err)
		}
		return "image/png", true, nil
	default:
		if err := jpeg.Encode(w, dst, &jpeg.Options{Quality: quality}); err != nil {
			return "", true, fmt.Errorf("encode jpeg thumbnail: %w", err)
		}
		return "image/jpeg", true, nil
	}
}

func scaleToFit(src image.Image, maxDim int) image.Image {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxDim && height <= maxDim {
		return src
	}

	if width >= height {
		height = max(1, height*maxDim/width)
		width = maxDim
	} else {
		width = max(1, width*maxDim/height)
		height = maxDim
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	return dst
}
