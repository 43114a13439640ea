package download

import (
	"context"
	"fmt"
	"sync/atomic"

	ioutils "github.com/maxpowa/actibook-downloader/internal/io"
	"github.com/maxpowa/actibook-downloader/internal/model"
	"golang.org/x/sync/errgroup"
)

// Fetcher retrieves all pages of a book concurrently.
type Fetcher struct {
	getter   Getter
	limit    int
	progress reporter

	// Optional page downscaling.
	images      *ioutils.ImageService
	maxPageSize int

	done  atomic.Int32
	total atomic.Int32
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithConcurrencyLimit caps the number of in-flight page requests.
// A limit <= 0 leaves the fan-out unbounded.
func WithConcurrencyLimit(limit int) FetcherOption {
	return func(f *Fetcher) {
		f.limit = limit
	}
}

// WithPageResize downscales retrieved pages larger than maxSize pixels.
func WithPageResize(images *ioutils.ImageService, maxSize int) FetcherOption {
	return func(f *Fetcher) {
		f.images = images
		f.maxPageSize = maxSize
	}
}

// NewFetcher creates a Fetcher that issues requests through getter.
func NewFetcher(getter Getter, onProgress func(ProgressEvent), opts ...FetcherOption) *Fetcher {
	f := &Fetcher{getter: getter, progress: onProgress}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll launches one request per page of book under def and waits for
// all of them to settle.
//
// The returned slice has exactly book.LastPage elements ordered by page
// index. A page that fails is reported as a warning and returned as an
// absent result carrying the failure; it never stops the other requests.
func (f *Fetcher) FetchAll(ctx context.Context, book *model.Book, def *model.Definition) []model.PageResult {
	n := book.LastPage
	if n < 0 {
		n = 0
	}

	f.done.Store(0)
	f.total.Store(int32(n))

	results := make([]model.PageResult, n)

	var g errgroup.Group
	if f.limit > 0 {
		g.SetLimit(f.limit)
	}

	for i := 0; i < n; i++ {
		g.Go(func() error {
			results[i] = f.fetchPageRecovered(ctx, book, def, i)
			done := f.done.Add(1)
			if results[i].OK() {
				f.progress.emit(LevelVerbose, fmt.Sprintf("Ripped page %d, %d%% complete", i+1, int(done)*100/n))
			}
			return nil // a failed page never cancels its siblings
		})
	}

	_ = g.Wait()
	return results
}

// Progress returns the number of settled pages and the page total of the
// current or last FetchAll call.
func (f *Fetcher) Progress() (done, total int32) {
	return f.done.Load(), f.total.Load()
}

// fetchPageRecovered reports a panic while fetching a page as a failed page.
func (f *Fetcher) fetchPageRecovered(ctx context.Context, book *model.Book, def *model.Definition, index int) (result model.PageResult) {
	defer func() {
		if r := recover(); r != nil {
			result = model.PageResult{Index: index, Err: fmt.Errorf("page %d panicked: %v", index+1, r)}
			f.progress.emit(LevelWarning, fmt.Sprintf("Ripping page %d failed: %v", index+1, result.Err))
		}
	}()
	return f.fetchPage(ctx, book, def, index)
}

func (f *Fetcher) fetchPage(ctx context.Context, book *model.Book, def *model.Definition, index int) model.PageResult {
	result := model.PageResult{Index: index}

	u, err := def.PageURL(book.BaseURL, index)
	if err != nil {
		result.Err = err
		f.progress.emit(LevelWarning, fmt.Sprintf("Ripping page %d failed: %v", index+1, err))
		return result
	}
	result.URL = u.String()

	data, err := f.getter.Get(ctx, result.URL)
	if err != nil {
		result.Err = err
		f.progress.emit(LevelWarning, fmt.Sprintf("Ripping page %d failed: %v", index+1, err))
		return result
	}

	if f.images != nil {
		resized, changed, err := f.images.FitWithin(ctx, data, f.maxPageSize)
		if err != nil {
			f.progress.emit(LevelVerbose, fmt.Sprintf("Keeping page %d at original size: %v", index+1, err))
		} else if changed {
			data = resized
		}
	}

	result.FileName = model.PageFileName(u)
	result.Data = data
	return result
}
