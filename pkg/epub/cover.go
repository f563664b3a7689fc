package epub

import (
	"image"
	// Register decoders for the cover formats EPUBs use.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/pkg/errors"
	_ "golang.org/x/image/webp"
)

// ProbeCover decodes only the header of the image at p and returns its size.
func ProbeCover(p string) (int, int, error) {
	f, err := os.Open(p)
	if err != nil {
		return 0, 0, errors.WithStack(err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, errors.WithStack(err)
	}
	return cfg.Width, cfg.Height, nil
}
