package assets

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
)

// AspectRatio returns height/width of an encoded image, or 0 when the
// format is not recognized.
func AspectRatio(data []byte) float64 {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width == 0 {
		return 0
	}
	return float64(cfg.Height) / float64(cfg.Width)
}

// SniffMimeType returns declared unless it is empty or generic, in which
// case the type is detected from the bytes.
func SniffMimeType(declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return strings.SplitN(http.DetectContentType(data), ";", 2)[0]
}
