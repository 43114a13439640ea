// Package model defines the core data structures used throughout
// the actibook-downloader application.
//
// # Book
//
// Book describes one ActiBook publication as exposed by its viewer page:
//
//	book := &model.Book{
//	    Title:    "Demo",
//	    LastPage: 3,
//	    HD:       &model.Definition{PieceDirectory: "/hd"},
//	    SD:       &model.Definition{PieceDirectory: "/sd"},
//	    BaseURL:  base,
//	}
//	if err := book.Validate(); err != nil {
//	    // errors.Is(err, model.ErrInvalidBookShape)
//	}
//
// # Definition
//
// A Definition is one quality tier. Page images live under its piece
// directory as 1.jpg … LastPage.jpg:
//
//	u, _ := book.HD.PageURL(book.BaseURL, 0) // <base>/hd/1.jpg
//
// # PageResult
//
// PageResult is the outcome of fetching one page. Failed pages keep their
// index, URL and reason so callers can report partial completion.
//
// # Archive naming
//
//	model.ArchiveFileName("My:Book*") // "MyBook.zip"
package model
