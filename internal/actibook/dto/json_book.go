package dto

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/maxpowa/actibook-downloader/internal/model"
)

// PageCount is a page count that may be encoded as a JSON number or a
// numeric string ("12").
type PageCount int

// UnmarshalJSON accepts 12, "12" and "".
func (pc *PageCount) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*pc = PageCount(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("unable to parse page count: %s", data)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		*pc = 0
		return nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("unable to parse page count: %q", s)
	}
	*pc = PageCount(n)
	return nil
}

// JSONBook represents the deserialized data-book attribute.
type JSONBook struct {
	Title    string          `json:"title"`
	LastPage PageCount       `json:"lastPage"`
	HD       *JSONDefinition `json:"hd"`
	SD       *JSONDefinition `json:"sd"`
}

// JSONDefinition is one quality tier of a JSONBook.
type JSONDefinition struct {
	PieceDirectory string `json:"pieceDirectory"`
}

// ToBook converts JSONBook to a model.Book rooted at base.
//
// The result is not validated.
func (jb *JSONBook) ToBook(base *url.URL) *model.Book {
	return &model.Book{
		Title:    strings.TrimSpace(jb.Title),
		LastPage: int(jb.LastPage),
		HD:       jb.HD.toDefinition(),
		SD:       jb.SD.toDefinition(),
		BaseURL:  base,
	}
}

func (jd *JSONDefinition) toDefinition() *model.Definition {
	if jd == nil {
		return nil
	}
	return &model.Definition{PieceDirectory: strings.TrimSpace(jd.PieceDirectory)}
}
