package core

import (
	"errors"
	"fmt"
)

// Standard error variables for the conditions callers need to tell apart
var (
	// Detection and setup
	ErrFormatUndetermined = errors.New("result file format could not be determined")
	ErrCatalogLoad        = errors.New("modification catalog could not be loaded")
	ErrReaderClosed       = errors.New("reader is closed")

	// Per-record conditions
	ErrInvalidResidue      = errors.New("invalid residue")
	ErrUnknownSymbol       = errors.New("unknown modification symbol")
	ErrUnknownModification = errors.New("unknown modification name")
	ErrMalformedRecord     = errors.New("malformed record")
)

// ResidueError reports a character outside the 20 standard amino acid codes.
type ResidueError struct {
	Sequence string
	Residue  rune
	Position int // 1-based
}

func (e *ResidueError) Error() string {
	return fmt.Sprintf("invalid residue '%c' at position %d in %s", e.Residue, e.Position, e.Sequence)
}

// Unwrap lets errors.Is match ErrInvalidResidue
func (e *ResidueError) Unwrap() error {
	return ErrInvalidResidue
}

// CatalogLoadError reports a malformed line in a modification definitions
// or mass correction tags file.
type CatalogLoadError struct {
	Path string
	Line int
	Text string
	Err  error
}

func (e *CatalogLoadError) Error() string {
	path := e.Path
	if path == "" {
		path = "<input>"
	}
	return fmt.Sprintf("%s line %d: %v (%q)", path, e.Line, e.Err, e.Text)
}

// Is matches ErrCatalogLoad as well as the wrapped cause
func (e *CatalogLoadError) Is(target error) bool {
	return target == ErrCatalogLoad
}

func (e *CatalogLoadError) Unwrap() error {
	return e.Err
}

// RecordError ties a per-record failure to the input location that caused it.
type RecordError struct {
	Path string
	Line int
	Raw  string
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s line %d: %v", e.Path, e.Line, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
