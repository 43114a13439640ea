// Package actibook reads ActiBook viewer pages and extracts the book they
// display.
//
// # Viewer Page Parsing
//
// Use the Parser to turn the HTML of a viewer page into a model.Book:
//
//	parser := actibook.NewParser()
//	book, err := parser.ParseViewerPage(pageURL, resp.Body)
//	if errors.Is(err, actibook.ErrNoBookData) {
//	    log.Fatal("not an ActiBook viewer page")
//	}
//	fmt.Printf("%s: %d pages\n", book.Title, book.LastPage)
//
// # ActiBook Data Format
//
// The viewer embeds the book as JSON in a `data-book` attribute:
//
//	<div id="viewer" data-book='{"title":"Demo","lastPage":3,
//	    "hd":{"pieceDirectory":"books/images/2"},
//	    "sd":{"pieceDirectory":"books/images/1"}}'></div>
//
// Piece directories are resolved against the document base: the page's
// <base href> when present, the page URL otherwise. Page images live at
// "<pieceDirectory>/<n>.jpg" for n in 1..lastPage.
package actibook
