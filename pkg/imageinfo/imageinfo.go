package imageinfo

import (
	"bytes"
	stderrors "errors"
	"image"
	"strings"

	// decoders registered with the image package
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gabriel-vasile/mimetype"

	"forumscraper/pkg/errors"
)

// GenericExt is used for image types whose extension is unknown
const GenericExt = "img"

// Info describes a downloaded image
type Info struct {
	MIME   string
	Format string
	Ext    string
	Width  int
	Height int
	// Measured is false for images whose dimensions cannot be read, such as
	// SVG or formats with no registered decoder.
	Measured bool
}

// Inspect sniffs the content type of data and reads its dimensions.
// It returns a decode error when data is not an image or is corrupt.
func Inspect(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, errors.New(errors.ErrorTypeDecode, "empty body")
	}

	mt := mimetype.Detect(data)
	mime := mt.String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if !strings.HasPrefix(mime, "image/") {
		return Info{}, errors.New(errors.ErrorTypeDecode, "content is %s, not an image", mime)
	}

	info := Info{
		MIME:   mime,
		Format: strings.TrimPrefix(mime, "image/"),
		Ext:    extension(mt),
	}
	if mt.Is("image/svg+xml") {
		return info, nil
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err == nil {
		info.Format = format
		info.Width, info.Height = cfg.Width, cfg.Height
		info.Measured = true
		return info, nil
	}
	if stderrors.Is(err, image.ErrFormat) {
		// no decoder for this image type
		return info, nil
	}

	img, format, derr := image.Decode(bytes.NewReader(data))
	if derr != nil {
		return Info{}, errors.Wrap(errors.ErrorTypeDecode, err, "cannot read %s image", info.Format)
	}
	b := img.Bounds()
	info.Format = format
	info.Width, info.Height = b.Dx(), b.Dy()
	info.Measured = true
	return info, nil
}

// Passes reports whether info meets the minimum dimensions. An image is
// rejected only when strictly narrower or shorter than the minimum.
// Unmeasured images always pass.
func Passes(info Info, minWidth, minHeight int) bool {
	if !info.Measured {
		return true
	}
	return info.Width >= minWidth && info.Height >= minHeight
}

// Check inspects data and applies the resolution filter in one step
func Check(data []byte, minWidth, minHeight int) (Info, bool, error) {
	info, err := Inspect(data)
	if err != nil {
		return Info{}, false, err
	}
	return info, Passes(info, minWidth, minHeight), nil
}

func extension(mt *mimetype.MIME) string {
	ext := strings.TrimPrefix(mt.Extension(), ".")
	switch ext {
	case "":
		return GenericExt
	case "jpeg":
		return "jpg"
	case "tif":
		return "tiff"
	}
	return ext
}
