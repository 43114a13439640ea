package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/maxpowa/actibook-downloader/internal/model"
)

// Archive is a finished ZIP container.
type Archive struct {
	// Data is the complete ZIP file.
	Data []byte

	// Entries is the number of pages stored in the archive.
	Entries int

	// Skipped is the number of absent page results that were left out.
	Skipped int
}

// Size returns the archive size in bytes.
func (a *Archive) Size() int64 {
	return int64(len(a.Data))
}

// Builder creates ZIP archives from page results.
type Builder struct {
	method uint16
	now    func() time.Time
}

// NewBuilder creates a Builder that deflates entries.
func NewBuilder() *Builder {
	return &Builder{
		method: zip.Deflate,
		now:    time.Now,
	}
}

// Build writes every present page result into a new archive.
//
// Entries are stored under PageResult.FileName in launch-index order with
// their bytes copied verbatim. Failed page results are skipped.
//
// Returns an error if the context is cancelled or the ZIP cannot be written.
func (b *Builder) Build(ctx context.Context, pages []model.PageResult) (*Archive, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	modified := b.now()
	archive := &Archive{}

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return nil, err
		}
		if !page.OK() {
			archive.Skipped++
			continue
		}

		header := &zip.FileHeader{
			Name:     page.FileName,
			Method:   b.method,
			Modified: modified,
		}
		header.SetMode(0644)

		w, err := zw.CreateHeader(header)
		if err != nil {
			zw.Close()
			return nil, fmt.Errorf("create archive entry %s: %w", page.FileName, err)
		}
		if _, err := w.Write(page.Data); err != nil {
			zw.Close()
			return nil, fmt.Errorf("write archive entry %s: %w", page.FileName, err)
		}
		archive.Entries++
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}

	archive.Data = buf.Bytes()
	return archive, nil
}
