package tui

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/maxpowa/actibook-downloader/internal/config"
	"github.com/maxpowa/actibook-downloader/internal/download"
	"github.com/maxpowa/actibook-downloader/internal/model"
)

type nopGetter struct{}

func (nopGetter) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("offline")
}

type nopSink struct{}

func (nopSink) Deliver(_ context.Context, fileName string, _ []byte) (string, error) {
	return fileName, nil
}

func newTestModel() Model {
	return NewModel(config.DefaultSettings(), nopGetter{}, nopSink{}, nil)
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

func testBook() *model.Book {
	base, _ := url.Parse("https://books.example.com/demo/index.html")
	return &model.Book{
		Title:    "Demo",
		LastPage: 3,
		HD:       &model.Definition{PieceDirectory: "hd"},
		SD:       &model.Definition{PieceDirectory: "sd"},
		BaseURL:  base,
	}
}

func TestModel_EnterRequiresURL(t *testing.T) {
	m := update(t, newTestModel(), tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != StateInput {
		t.Errorf("state = %v, want StateInput", m.state)
	}

	m.textInput.SetValue("https://books.example.com/demo/index.html")
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.state != StateLoading {
		t.Errorf("state = %v, want StateLoading", m.state)
	}
}

func TestModel_BuildLifecycle(t *testing.T) {
	m := newTestModel()
	m.state = StateLoading

	m = update(t, m, BookLoadedMsg{Book: testBook()})
	if m.state != StateBuilding {
		t.Fatalf("state = %v, want StateBuilding", m.state)
	}
	if m.totalPages != 3 {
		t.Errorf("totalPages = %d, want 3", m.totalPages)
	}

	// A second request while building is dropped by the session.
	m = update(t, m, BuildDoneMsg{Outcome: download.OutcomeAlreadyRunning})
	if m.state != StateBuilding {
		t.Errorf("state = %v after already-running notice, want StateBuilding", m.state)
	}
	if len(m.logs) != 1 || m.logs[0].Level != download.LevelWarning {
		t.Errorf("logs = %+v, want one warning", m.logs)
	}

	result := &download.Result{
		Title: "Demo", FileName: "Demo.zip", Location: "/tmp/Demo.zip",
		Total: 3, Retrieved: 2, Missing: []int{2}, Size: 2048, Status: download.StatusPartial,
	}
	m = update(t, m, BuildDoneMsg{Outcome: download.OutcomeStarted, Result: result})
	if m.state != StateComplete {
		t.Fatalf("state = %v, want StateComplete", m.state)
	}

	view := m.View()
	for _, want := range []string{"/tmp/Demo.zip", "2/3 pages retrieved", "Missing: 2", "2.0 kB"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() does not contain %q", want)
		}
	}
}

func TestModel_LoadError(t *testing.T) {
	m := newTestModel()
	m.state = StateLoading

	m = update(t, m, BookLoadedMsg{Err: errors.New("no book data found on page")})
	if m.state != StateError {
		t.Fatalf("state = %v, want StateError", m.state)
	}
	if !strings.Contains(m.View(), "no book data found on page") {
		t.Error("View() does not show the error")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if m.state != StateInput || m.err != nil {
		t.Errorf("reset left state = %v err = %v", m.state, m.err)
	}
}

func TestModel_VerboseFilter(t *testing.T) {
	m := newTestModel()

	m = update(t, m, ProgressMsg{Event: download.ProgressEvent{Message: "Ripped page 1, 33% complete", Level: download.LevelVerbose}})
	if len(m.logs) != 0 {
		t.Errorf("verbose event shown without verbose mode: %+v", m.logs)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = update(t, m, ProgressMsg{Event: download.ProgressEvent{Message: "Ripped page 2, 66% complete", Level: download.LevelVerbose}})
	if len(m.logs) != 1 {
		t.Errorf("logs = %+v, want the verbose event", m.logs)
	}
}

func TestModel_LogsAreCapped(t *testing.T) {
	m := newTestModel()
	for i := 0; i < maxLogs+5; i++ {
		m = update(t, m, ProgressMsg{Event: download.ProgressEvent{Message: "event", Level: download.LevelInfo}})
	}
	if len(m.logs) != maxLogs {
		t.Errorf("len(logs) = %d, want %d", len(m.logs), maxLogs)
	}
}

func TestModel_CancelWaitsForRunningBuild(t *testing.T) {
	m := newTestModel()
	m.state = StateLoading
	m = update(t, m, BookLoadedMsg{Book: testBook()})

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.state != StateCancelling {
		t.Fatalf("state = %v after esc, want StateCancelling", m.state)
	}
	if m.ctx.Err() == nil {
		t.Error("esc did not cancel the build context")
	}

	// No new book can be started until the cancelled build returns.
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if m.state != StateCancelling {
		t.Fatalf("state = %v after r, want StateCancelling", m.state)
	}

	m = update(t, m, BuildDoneMsg{Outcome: download.OutcomeStarted, Result: &download.Result{Status: download.StatusFailed}, Err: context.Canceled})
	if m.state != StateError || !errors.Is(m.err, errCancelled) {
		t.Fatalf("state = %v err = %v, want StateError with errCancelled", m.state, m.err)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if m.state != StateInput {
		t.Errorf("state = %v after reset, want StateInput", m.state)
	}
}

func TestModel_CancelWhileLoading(t *testing.T) {
	m := newTestModel()
	m.state = StateLoading

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.state != StateCancelling {
		t.Fatalf("state = %v, want StateCancelling", m.state)
	}

	m = update(t, m, BookLoadedMsg{Book: testBook()})
	if m.state != StateError || m.book != nil {
		t.Errorf("state = %v book = %v, want StateError and no book", m.state, m.book)
	}
}
