package download

import (
	"context"
	"fmt"

	"github.com/maxpowa/actibook-downloader/internal/model"
)

// Getter fetches the body of a URL. *http.Client from internal/http
// satisfies it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Prober checks which quality tier of a book is reachable.
type Prober struct {
	getter   Getter
	progress reporter
}

// NewProber creates a Prober that issues requests through getter.
func NewProber(getter Getter, onProgress func(ProgressEvent)) *Prober {
	return &Prober{getter: getter, progress: onProgress}
}

// Probe requests the first page of def and reports whether it came back
// with a non-empty body.
//
// Any failure (bad URL, network error, non-2xx status) counts as "not
// available" and is never returned to the caller.
func (p *Prober) Probe(ctx context.Context, book *model.Book, def *model.Definition) bool {
	if def == nil {
		return false
	}

	u, err := def.PageURL(book.BaseURL, 0)
	if err != nil {
		p.progress.emit(LevelVerbose, fmt.Sprintf("Quality probe skipped: %v", err))
		return false
	}

	body, err := p.getter.Get(ctx, u.String())
	if err != nil {
		p.progress.emit(LevelVerbose, fmt.Sprintf("Quality probe of %s failed: %v", u, err))
		return false
	}

	return len(body) > 0
}

// SelectDefinition returns the HD tier when its probe succeeds and the SD
// tier otherwise.
func (p *Prober) SelectDefinition(ctx context.Context, book *model.Book) (model.Tier, *model.Definition) {
	if p.Probe(ctx, book, book.HD) {
		return model.TierHD, book.HD
	}
	return model.TierSD, book.SD
}
