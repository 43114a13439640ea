package download

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/maxpowa/actibook-downloader/internal/archive"
	"github.com/maxpowa/actibook-downloader/internal/config"
	ioutils "github.com/maxpowa/actibook-downloader/internal/io"
	"github.com/maxpowa/actibook-downloader/internal/model"
)

// ErrNoPages is returned when not a single page of a book was retrieved.
var ErrNoPages = errors.New("no pages could be retrieved")

// State is the state of a Session.
type State int

const (
	StateIdle State = iota
	StateRunning
)

// String returns "idle" or "running".
func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "idle"
}

// Outcome tells whether a Start call ran the pipeline.
type Outcome int

const (
	// OutcomeStarted means the pipeline ran; see the returned Result and error.
	OutcomeStarted Outcome = iota

	// OutcomeAlreadyRunning means another build was in progress and the
	// request was dropped.
	OutcomeAlreadyRunning
)

// Sink receives finished archives.
type Sink interface {
	// Deliver stores data under fileName and returns where it was stored.
	Deliver(ctx context.Context, fileName string, data []byte) (string, error)
}

// Recorder keeps a record of finished builds.
type Recorder interface {
	Record(ctx context.Context, result *Result) error
}

// Session runs archive builds one at a time.
//
// Progress callbacks may be invoked from several goroutines while pages
// are being fetched.
type Session struct {
	settings *config.Settings
	prober   *Prober
	fetcher  *Fetcher
	builder  *archive.Builder
	sink     Sink
	recorder Recorder
	progress reporter

	running atomic.Bool
	now     func() time.Time
}

// NewSession creates a Session.
//
// Pages are requested through getter and finished archives are handed to
// sink. onProgress may be nil.
func NewSession(settings *config.Settings, getter Getter, sink Sink, onProgress func(ProgressEvent)) *Session {
	opts := []FetcherOption{WithConcurrencyLimit(settings.MaxConcurrentPages)}
	if settings.ResizePages {
		opts = append(opts, WithPageResize(ioutils.NewImageService(), settings.MaxPageSize))
	}

	return &Session{
		settings: settings,
		prober:   NewProber(getter, onProgress),
		fetcher:  NewFetcher(getter, onProgress, opts...),
		builder:  archive.NewBuilder(),
		sink:     sink,
		progress: onProgress,
		now:      time.Now,
	}
}

// SetRecorder registers a Recorder that is told about every finished build.
func (s *Session) SetRecorder(r Recorder) {
	s.recorder = r
}

// State returns StateRunning while a build is in progress.
func (s *Session) State() State {
	if s.running.Load() {
		return StateRunning
	}
	return StateIdle
}

// Progress returns the number of settled pages and the page total of the
// current build.
func (s *Session) Progress() (done, total int32) {
	return s.fetcher.Progress()
}

// Start builds and delivers the archive for book.
//
// When a build is already in progress, Start returns OutcomeAlreadyRunning
// with a nil Result and nil error without doing anything. Otherwise it
// returns OutcomeStarted together with the Result of the build; the error
// is non-nil when no archive was delivered.
//
// The session is back to StateIdle when Start returns, whatever the outcome.
func (s *Session) Start(ctx context.Context, book *model.Book) (Outcome, *Result, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.progress.emit(LevelWarning, "An archive is already being built, request ignored")
		return OutcomeAlreadyRunning, nil, nil
	}
	defer s.running.Store(false)

	result := &Result{
		ID:        uuid.NewString(),
		StartedAt: s.now(),
	}
	if book != nil {
		result.Title = book.Title
		result.Total = book.LastPage
	}

	err := s.runGuarded(ctx, book, result)

	result.FinishedAt = s.now()
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		s.progress.emit(LevelError, fmt.Sprintf("Archive for %q failed: %v", result.Title, err))
	}

	if s.recorder != nil {
		if rerr := s.recorder.Record(context.WithoutCancel(ctx), result); rerr != nil {
			s.progress.emit(LevelWarning, fmt.Sprintf("Could not record run history: %v", rerr))
		}
	}

	return OutcomeStarted, result, err
}

// runGuarded runs the pipeline, turning a panic into an error.
func (s *Session) runGuarded(ctx context.Context, book *model.Book, result *Result) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("archive pipeline panicked: %v", r)
		}
	}()
	return s.run(ctx, book, result)
}

func (s *Session) run(ctx context.Context, book *model.Book, result *Result) error {
	if err := book.Validate(); err != nil {
		return err
	}

	s.progress.emit(LevelInfo, fmt.Sprintf("Ripping %d pages...", book.LastPage))

	tier, def := s.prober.SelectDefinition(ctx, book)
	result.Tier = tier
	s.progress.emit(LevelInfo, fmt.Sprintf("Using %s quality", tier))

	pages := s.fetcher.FetchAll(ctx, book, def)
	result.Retrieved = model.CountRetrieved(pages)
	result.Missing = model.MissingPages(pages)

	if err := ctx.Err(); err != nil {
		return err
	}
	if book.LastPage > 0 && result.Retrieved == 0 && !s.settings.AllowEmptyArchive {
		return fmt.Errorf("%w (0/%d)", ErrNoPages, book.LastPage)
	}

	s.progress.emit(LevelInfo, "Creating zip...")
	zipped, err := s.builder.Build(ctx, pages)
	if err != nil {
		return fmt.Errorf("build archive: %w", err)
	}
	result.Size = zipped.Size()

	result.FileName = model.ArchiveFileName(book.Title)
	s.progress.emit(LevelInfo, "Saving generated zip... This may take a moment")

	location, err := s.sink.Deliver(ctx, result.FileName, zipped.Data)
	if err != nil {
		return fmt.Errorf("deliver archive: %w", err)
	}
	result.Location = location

	if len(result.Missing) == 0 {
		result.Status = StatusCompleted
		s.progress.emit(LevelSuccess, fmt.Sprintf("Saved %s (%s)", result.FileName, result.Summary()))
	} else {
		result.Status = StatusPartial
		s.progress.emit(LevelWarning, fmt.Sprintf("Saved %s with missing pages (%s)", result.FileName, result.Summary()))
	}

	return nil
}
