package imagegen

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"

	_ "golang.org/x/image/webp"
)

// NewImage builds an Image from encoded bytes, reading the dimensions from
// the image header. mimeType may be empty, in which case it is sniffed.
func NewImage(data []byte, mimeType, model string) *Image {
	img := &Image{
		Data:     data,
		MIMEType: mimeType,
		Model:    model,
		ByteSize: len(data),
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		slog.Debug("imagegen: could not read image dimensions", "model", model, "error", err)
	} else {
		img.Width = cfg.Width
		img.Height = cfg.Height
	}

	if img.MIMEType == "" {
		if format != "" {
			img.MIMEType = "image/" + format
		} else {
			img.MIMEType = http.DetectContentType(data)
		}
	}
	return img
}
