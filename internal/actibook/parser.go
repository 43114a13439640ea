package actibook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maxpowa/actibook-downloader/internal/actibook/dto"
	"github.com/maxpowa/actibook-downloader/internal/model"
)

// ErrNoBookData is returned when a page carries no data-book attribute.
//
// This typically occurs when:
//   - The URL is not an ActiBook viewer page
//   - The viewer redirected to a login or error page
var ErrNoBookData = errors.New("no book data found on page")

// Getter fetches the body of a URL.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Parser extracts book information from ActiBook viewer pages.
//
// Example usage:
//
//	parser := NewParser()
//
//	resp, _ := http.Get("https://example.com/book/index.html")
//	defer resp.Body.Close()
//
//	book, err := parser.ParseViewerPage("https://example.com/book/index.html", resp.Body)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Book: %s (%d pages)\n", book.Title, book.LastPage)
type Parser struct{}

// NewParser creates a new Parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseViewerPage extracts the book from the HTML of the viewer page
// located at pageURL.
//
// This method performs the following steps:
//  1. Finds the data-book attribute and decodes its JSON
//  2. Determines the document base from <base href>, or pageURL
//  3. Falls back to the <title> text when the book has no title
//  4. Validates the resulting book
//
// Returns an error if:
//   - pageURL is not an absolute URL
//   - The data-book attribute cannot be found (ErrNoBookData)
//   - The JSON is malformed
//   - The book is missing required fields (model.ErrInvalidBookShape)
func (p *Parser) ParseViewerPage(pageURL string, html io.Reader) (*model.Book, error) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid page URL: %w", err)
	}
	if !page.IsAbs() {
		return nil, fmt.Errorf("invalid page URL %q: not absolute", pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(html)
	if err != nil {
		return nil, fmt.Errorf("failed to read viewer page: %w", err)
	}

	raw, ok := doc.Find("[data-book]").First().Attr("data-book")
	if !ok {
		return nil, ErrNoBookData
	}

	var jsonBook dto.JSONBook
	if err := json.Unmarshal([]byte(raw), &jsonBook); err != nil {
		return nil, fmt.Errorf("failed to parse book JSON: %w", err)
	}

	base, err := documentBase(doc, page)
	if err != nil {
		return nil, err
	}

	book := jsonBook.ToBook(base)
	if book.Title == "" {
		book.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	if err := book.Validate(); err != nil {
		return nil, err
	}
	return book, nil
}

// LoadViewerPage downloads the viewer page at pageURL through getter and
// parses it with ParseViewerPage.
func (p *Parser) LoadViewerPage(ctx context.Context, getter Getter, pageURL string) (*model.Book, error) {
	body, err := getter.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve viewer page: %w", err)
	}
	return p.ParseViewerPage(pageURL, bytes.NewReader(body))
}

// documentBase resolves the first <base href> against page. Without one
// the page itself is the base.
func documentBase(doc *goquery.Document, page *url.URL) (*url.URL, error) {
	href, ok := doc.Find("base[href]").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return page, nil
	}

	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil, fmt.Errorf("invalid base href %q: %w", href, err)
	}
	return page.ResolveReference(ref), nil
}
