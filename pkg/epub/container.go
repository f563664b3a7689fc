package epub

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const containerPath = "META-INF/container.xml"

const packageMediaType = "application/oebps-package+xml"

type containerXML struct {
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// readContainer returns the archive-internal path of the package document.
// When several rootfiles are listed the OPF media type wins, then the first.
func readContainer(root string) (string, error) {
	p := filepath.Join(root, filepath.FromSlash(containerPath))
	data, err := readLimited(p, maxDocumentSize)
	if err != nil {
		return "", &StructureParseError{Path: containerPath, Err: err}
	}

	var c containerXML
	if err := decodeXML(data, &c); err != nil {
		return "", &StructureParseError{Path: containerPath, Err: err}
	}

	fallback := ""
	for _, rf := range c.RootFiles {
		fullPath := strings.TrimSpace(rf.FullPath)
		if fullPath == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(rf.MediaType), packageMediaType) {
			return fullPath, nil
		}
		if fallback == "" {
			fallback = fullPath
		}
	}

	if fallback == "" {
		return "", &StructureParseError{Path: containerPath, Err: errors.New("no rootfile entries")}
	}
	return fallback, nil
}
