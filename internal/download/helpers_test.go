package download

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/maxpowa/actibook-downloader/internal/model"
)

// fakeGetter serves canned bodies keyed by URL and records every request.
type fakeGetter struct {
	mu     sync.Mutex
	bodies map[string][]byte
	calls  []string
}

func newFakeGetter(bodies map[string][]byte) *fakeGetter {
	return &fakeGetter{bodies: bodies}
}

func (g *fakeGetter) Get(ctx context.Context, url string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, url)
	if body, ok := g.bodies[url]; ok {
		return body, nil
	}
	return nil, errors.New("HTTP 404: 404 Not Found")
}

func (g *fakeGetter) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// memorySink keeps delivered archives in memory.
type memorySink struct {
	mu         sync.Mutex
	deliveries []delivery
}

type delivery struct {
	fileName string
	data     []byte
}

func (s *memorySink) Deliver(ctx context.Context, fileName string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliveries = append(s.deliveries, delivery{fileName: fileName, data: data})
	return "memory://" + fileName, nil
}

func (s *memorySink) Deliveries() []delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery(nil), s.deliveries...)
}

// eventLog collects progress events from concurrent goroutines.
type eventLog struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (l *eventLog) add(e ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) count(level ProgressLevel) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Level == level {
			n++
		}
	}
	return n
}

const testBase = "https://viewer.example.com/book/index.html"

func demoBook(t *testing.T, lastPage int) *model.Book {
	t.Helper()
	base, err := url.Parse(testBase)
	if err != nil {
		t.Fatal(err)
	}
	return &model.Book{
		Title:    "Demo",
		LastPage: lastPage,
		HD:       &model.Definition{PieceDirectory: "/hd"},
		SD:       &model.Definition{PieceDirectory: "/sd"},
		BaseURL:  base,
	}
}
