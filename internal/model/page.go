package model

// PageResult is the outcome of fetching a single page.
//
// A present result carries the payload under FileName. An absent result
// keeps Index and URL together with the failure reason in Err.
type PageResult struct {
	// Index is the zero-based launch index of the page.
	Index int

	// URL is the resolved page URL.
	URL string

	// FileName is the archive entry name, the last segment of URL.
	FileName string

	// Data is the raw page payload.
	Data []byte

	// Err is the reason the page could not be retrieved.
	Err error
}

// OK reports whether the page was retrieved.
func (p PageResult) OK() bool {
	return p.Err == nil && p.FileName != ""
}

// PageNumber returns the one-based page number.
func (p PageResult) PageNumber() int {
	return p.Index + 1
}

// CountRetrieved returns the number of present results.
func CountRetrieved(pages []PageResult) int {
	n := 0
	for _, p := range pages {
		if p.OK() {
			n++
		}
	}
	return n
}

// MissingPages returns the one-based numbers of the absent results.
func MissingPages(pages []PageResult) []int {
	var missing []int
	for _, p := range pages {
		if !p.OK() {
			missing = append(missing, p.PageNumber())
		}
	}
	return missing
}
