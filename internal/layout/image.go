package layout

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder

	"page-drm-service/internal/domain"
)

// MaxOutputPixels はDescrambleが生成する画像の最大ピクセル数（RGBAで256MiB）。
const MaxOutputPixels = 64 << 20

// Descramble はスクランブルされた画像を元の並びに組み直す。
// 元画像のストリップを上から順に読み、それぞれをRowBlock.Offsetの行へ全幅でコピーする。
func Descramble(src image.Image, blocks []domain.RowBlock) (*image.RGBA, error) {
	bounds := src.Bounds()

	height := 0
	cursor := 0
	for i, b := range blocks {
		if b.Offset < 0 || b.Height < 0 {
			return nil, fmt.Errorf("%w: block %d has negative geometry (%d, %d)", domain.ErrLayoutOutOfBounds, i, b.Offset, b.Height)
		}
		if cursor+b.Height > bounds.Dy() {
			return nil, fmt.Errorf("%w: block %d reads rows %d-%d of a %d px image",
				domain.ErrLayoutOutOfBounds, i, cursor, cursor+b.Height, bounds.Dy())
		}
		cursor += b.Height
		height = max(height, b.Offset+b.Height)
	}
	if pixels := int64(bounds.Dx()) * int64(height); pixels > MaxOutputPixels {
		return nil, fmt.Errorf("%w: output %dx%d exceeds %d pixels",
			domain.ErrLayoutOutOfBounds, bounds.Dx(), height, MaxOutputPixels)
	}

	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), height))
	cursor = 0
	for _, b := range blocks {
		sr := image.Rect(bounds.Min.X, bounds.Min.Y+cursor, bounds.Max.X, bounds.Min.Y+cursor+b.Height)
		draw.Copy(dst, image.Pt(0, b.Offset), src, sr, draw.Src, nil)
		cursor += b.Height
	}
	return dst, nil
}

// DecodeImage はJPEG・PNG・GIF・WebPの画像をデコードする。
func DecodeImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// EncodeImage は画像をformat（"png"、"jpeg"、"gif"）で書き出す。
func EncodeImage(w io.Writer, img image.Image, format string) error {
	switch format {
	case "png":
		return png.Encode(w, img)
	case "jpeg", "jpg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case "gif":
		return gif.Encode(w, img, nil)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
