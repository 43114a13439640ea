package model

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// ErrInvalidBookShape is matched by every error returned from Book.Validate.
var ErrInvalidBookShape = errors.New("invalid book shape")

// InvalidBookShapeError lists the fields of a Book that failed validation.
type InvalidBookShapeError struct {
	Fields []string
}

func (e *InvalidBookShapeError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidBookShape, strings.Join(e.Fields, ", "))
}

// Is reports whether target is ErrInvalidBookShape.
func (e *InvalidBookShapeError) Is(target error) bool {
	return target == ErrInvalidBookShape
}

// Tier identifies one of the two image quality levels of a book. The zero
// value means no tier has been selected yet.
type Tier int

const (
	// TierUnknown is the tier of a build that stopped before quality selection.
	TierUnknown Tier = iota

	// TierHD is the high definition tier, preferred when reachable.
	TierHD

	// TierSD is the standard definition fallback.
	TierSD
)

func (t Tier) String() string {
	switch t {
	case TierHD:
		return "HD"
	case TierSD:
		return "SD"
	default:
		return "unknown"
	}
}

// Definition is a quality tier of a book.
//
// Page images of the tier are served as "<PieceDirectory>/<n>.jpg" for
// n in 1..LastPage, relative to the document base of the viewer page.
type Definition struct {
	// PieceDirectory is the base path of the page images, e.g. "books/images/hd".
	PieceDirectory string
}

// PageURL returns the absolute URL of the page at the zero-based index.
//
// The relative reference "<PieceDirectory>/<index+1>.jpg" is resolved
// against base the same way a browser resolves it against document.baseURI.
//
// Example:
//
//	base, _ := url.Parse("https://example.com/book/index.html")
//	def := &Definition{PieceDirectory: "books/images/2"}
//	u, _ := def.PageURL(base, 0)
//	// u.String() == "https://example.com/book/books/images/2/1.jpg"
func (d *Definition) PageURL(base *url.URL, index int) (*url.URL, error) {
	if index < 0 {
		return nil, fmt.Errorf("page index %d out of range", index)
	}
	dir := strings.TrimRight(d.PieceDirectory, "/")
	ref, err := url.Parse(dir + "/" + strconv.Itoa(index+1) + ".jpg")
	if err != nil {
		return nil, fmt.Errorf("parse page reference: %w", err)
	}
	if base == nil {
		return ref, nil
	}
	return base.ResolveReference(ref), nil
}

// Book is one ActiBook publication.
//
// Book is read-only for the download pipeline: it is produced by the viewer
// page reader (or built directly by callers) and never modified afterwards.
type Book struct {
	// Title is used to name the resulting archive.
	Title string

	// LastPage is the total number of pages.
	LastPage int

	// HD is the high definition tier.
	HD *Definition

	// SD is the standard definition tier.
	SD *Definition

	// BaseURL is the document base that piece directories are resolved against.
	BaseURL *url.URL
}

// Validate checks that every field the pipeline reads is present.
//
// The returned error is an *InvalidBookShapeError naming all offending
// fields, and matches ErrInvalidBookShape with errors.Is.
func (b *Book) Validate() error {
	if b == nil {
		return &InvalidBookShapeError{Fields: []string{"book"}}
	}

	var fields []string
	if b.LastPage < 0 {
		fields = append(fields, "lastPage")
	}
	if b.HD == nil || strings.TrimSpace(b.HD.PieceDirectory) == "" {
		fields = append(fields, "hd.pieceDirectory")
	}
	if b.SD == nil || strings.TrimSpace(b.SD.PieceDirectory) == "" {
		fields = append(fields, "sd.pieceDirectory")
	}
	if b.BaseURL == nil {
		fields = append(fields, "baseURL")
	}

	if len(fields) > 0 {
		return &InvalidBookShapeError{Fields: fields}
	}
	return nil
}

// PageFileName returns the last path segment of a page URL, e.g. "3.jpg".
func PageFileName(u *url.URL) string {
	if u == nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}
