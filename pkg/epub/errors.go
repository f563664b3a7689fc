package epub

import "fmt"

// StructureParseError means the container descriptor or package document is
// missing or unreadable. It is fatal to a load.
type StructureParseError struct {
	Path string
	Err  error
}

func (e *StructureParseError) Error() string {
	return fmt.Sprintf("parse structure %s: %v", e.Path, e.Err)
}

func (e *StructureParseError) Unwrap() error {
	return e.Err
}

// NavigationParseError means the table of contents could not be read. The
// parser recovers from it by using the spine as the TOC.
type NavigationParseError struct {
	Path string
	Err  error
}

func (e *NavigationParseError) Error() string {
	return fmt.Sprintf("parse navigation %s: %v", e.Path, e.Err)
}

func (e *NavigationParseError) Unwrap() error {
	return e.Err
}
