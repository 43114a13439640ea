package download

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"sort"
	"sync"
	"testing"

	"github.com/maxpowa/actibook-downloader/internal/config"
	bookhttp "github.com/maxpowa/actibook-downloader/internal/http"
	"github.com/maxpowa/actibook-downloader/internal/model"
)

func testSettings() *config.Settings {
	settings := config.DefaultSettings()
	settings.ProxyType = config.ProxyNone
	return settings
}

func zipEntries(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader() error = %v", err)
	}
	entries := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		rc.Close()
		entries[f.Name] = buf.String()
	}
	return entries
}

func TestSession_PartialBookOverHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hd/1.jpg":
			w.Write([]byte("one"))
		case "/hd/3.jpg":
			w.Write([]byte("three"))
		default:
			http.Error(w, "gone", http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	book := demoBook(t, 3)
	base, _ := url.Parse(server.URL + "/book/index.html")
	book.BaseURL = base

	settings := testSettings()
	client, err := bookhttp.NewClient(settings)
	if err != nil {
		t.Fatal(err)
	}
	sink := &memorySink{}
	log := &eventLog{}
	session := NewSession(settings, client, sink, log.add)

	outcome, result, err := session.Start(context.Background(), book)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if outcome != OutcomeStarted {
		t.Fatalf("Start() outcome = %v, want OutcomeStarted", outcome)
	}

	if result.Tier != model.TierHD {
		t.Errorf("Tier = %v, want HD", result.Tier)
	}
	if result.Status != StatusPartial {
		t.Errorf("Status = %q, want %q", result.Status, StatusPartial)
	}
	if !reflect.DeepEqual(result.Missing, []int{2}) {
		t.Errorf("Missing = %v, want [2]", result.Missing)
	}
	if got := result.Summary(); got != "2/3 pages retrieved" {
		t.Errorf("Summary() = %q", got)
	}
	if result.ID == "" {
		t.Error("Result.ID is empty")
	}

	deliveries := sink.Deliveries()
	if len(deliveries) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(deliveries))
	}
	if deliveries[0].fileName != "Demo.zip" {
		t.Errorf("fileName = %q, want Demo.zip", deliveries[0].fileName)
	}
	entries := zipEntries(t, deliveries[0].data)
	want := map[string]string{"1.jpg": "one", "3.jpg": "three"}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("entries = %v, want %v", entries, want)
	}

	if log.count(LevelWarning) == 0 {
		t.Error("missing page was not reported as a warning")
	}
	if session.State() != StateIdle {
		t.Errorf("State() = %v after Start, want idle", session.State())
	}
}

func TestSession_FallsBackToSD(t *testing.T) {
	getter := newFakeGetter(map[string][]byte{
		"https://viewer.example.com/hd/1.jpg": {},
		"https://viewer.example.com/sd/1.jpg": []byte("s1"),
		"https://viewer.example.com/sd/2.jpg": []byte("s2"),
	})
	sink := &memorySink{}
	session := NewSession(testSettings(), getter, sink, nil)

	_, result, err := session.Start(context.Background(), demoBook(t, 2))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if result.Tier != model.TierSD || result.Status != StatusCompleted {
		t.Errorf("Tier = %v Status = %q, want SD completed", result.Tier, result.Status)
	}

	calls := getter.Calls()
	sort.Strings(calls)
	wantCalls := []string{
		"https://viewer.example.com/hd/1.jpg",
		"https://viewer.example.com/sd/1.jpg",
		"https://viewer.example.com/sd/2.jpg",
	}
	if !reflect.DeepEqual(calls, wantCalls) {
		t.Errorf("requests = %v, want %v", calls, wantCalls)
	}

	entries := zipEntries(t, sink.Deliveries()[0].data)
	if entries["1.jpg"] != "s1" || entries["2.jpg"] != "s2" {
		t.Errorf("entries = %v", entries)
	}
}

func TestSession_SingleFlight(t *testing.T) {
	getter := newGatedGetter()
	sink := &memorySink{}
	session := NewSession(testSettings(), getter, sink, nil)
	first, second := demoBook(t, 2), demoBook(t, 2)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstOutcome Outcome
	var firstErr error
	go func() {
		defer wg.Done()
		firstOutcome, _, firstErr = session.Start(context.Background(), first)
	}()

	<-getter.entered
	if session.State() != StateRunning {
		t.Errorf("State() = %v during build, want running", session.State())
	}

	outcome, result, err := session.Start(context.Background(), second)
	if outcome != OutcomeAlreadyRunning || result != nil || err != nil {
		t.Errorf("second Start() = (%v, %v, %v), want (OutcomeAlreadyRunning, nil, nil)", outcome, result, err)
	}

	close(getter.release)
	wg.Wait()

	if firstOutcome != OutcomeStarted || firstErr != nil {
		t.Errorf("first Start() = (%v, %v)", firstOutcome, firstErr)
	}
	if n := len(sink.Deliveries()); n != 1 {
		t.Errorf("deliveries = %d, want 1", n)
	}
	if session.State() != StateIdle {
		t.Errorf("State() = %v after build, want idle", session.State())
	}
}

func TestSession_NoPages(t *testing.T) {
	tests := []struct {
		name       string
		allowEmpty bool
		wantErr    bool
		wantStatus Status
	}{
		{name: "rejected by default", allowEmpty: false, wantErr: true, wantStatus: StatusFailed},
		{name: "allowed", allowEmpty: true, wantErr: false, wantStatus: StatusPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := testSettings()
			settings.AllowEmptyArchive = tt.allowEmpty
			sink := &memorySink{}
			session := NewSession(settings, newFakeGetter(nil), sink, nil)

			_, result, err := session.Start(context.Background(), demoBook(t, 2))

			if tt.wantErr {
				if !errors.Is(err, ErrNoPages) {
					t.Fatalf("Start() error = %v, want ErrNoPages", err)
				}
				if len(sink.Deliveries()) != 0 {
					t.Error("an archive was delivered")
				}
			} else {
				if err != nil {
					t.Fatalf("Start() error = %v", err)
				}
				deliveries := sink.Deliveries()
				if len(deliveries) != 1 {
					t.Fatalf("deliveries = %d, want 1", len(deliveries))
				}
				if entries := zipEntries(t, deliveries[0].data); len(entries) != 0 {
					t.Errorf("entries = %v, want none", entries)
				}
			}
			if result.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", result.Status, tt.wantStatus)
			}
			if result.Tier != model.TierSD {
				t.Errorf("Tier = %v, want SD after the HD check failed", result.Tier)
			}
		})
	}
}

func TestSession_EmptyBook(t *testing.T) {
	sink := &memorySink{}
	session := NewSession(testSettings(), newFakeGetter(nil), sink, nil)

	_, result, err := session.Start(context.Background(), demoBook(t, 0))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if result.Status != StatusCompleted {
		t.Errorf("Status = %q, want completed", result.Status)
	}
	deliveries := sink.Deliveries()
	if len(deliveries) != 1 || len(zipEntries(t, deliveries[0].data)) != 0 {
		t.Errorf("want one empty archive, got %d deliveries", len(deliveries))
	}
}

func TestSession_InvalidBook(t *testing.T) {
	book := demoBook(t, 2)
	book.HD = nil

	getter := newFakeGetter(nil)
	session := NewSession(testSettings(), getter, &memorySink{}, nil)

	_, result, err := session.Start(context.Background(), book)
	if !errors.Is(err, model.ErrInvalidBookShape) {
		t.Fatalf("Start() error = %v, want ErrInvalidBookShape", err)
	}
	if result.Status != StatusFailed || result.Error == "" {
		t.Errorf("Result = %+v, want failed with error text", result)
	}
	if result.Tier != model.TierUnknown {
		t.Errorf("Tier = %v, want unknown before quality selection", result.Tier)
	}
	if len(getter.Calls()) != 0 {
		t.Errorf("requests = %v, want none", getter.Calls())
	}
	if session.State() != StateIdle {
		t.Errorf("State() = %v, want idle", session.State())
	}

	if _, _, err := session.Start(context.Background(), nil); !errors.Is(err, model.ErrInvalidBookShape) {
		t.Errorf("Start(nil) error = %v, want ErrInvalidBookShape", err)
	}
}

func TestSession_FileNameSanitized(t *testing.T) {
	book := demoBook(t, 1)
	book.Title = `Vol. 1: "Spring"?`
	sink := &memorySink{}
	session := NewSession(testSettings(), newFakeGetter(map[string][]byte{
		"https://viewer.example.com/hd/1.jpg": []byte("p"),
	}), sink, nil)

	if _, _, err := session.Start(context.Background(), book); err != nil {
		t.Fatal(err)
	}
	if got := sink.Deliveries()[0].fileName; got != "Vol. 1 Spring.zip" {
		t.Errorf("fileName = %q, want %q", got, "Vol. 1 Spring.zip")
	}
}

type panickingSink struct{}

func (panickingSink) Deliver(context.Context, string, []byte) (string, error) {
	panic("disk on fire")
}

func TestSession_ReleasesAfterPanic(t *testing.T) {
	getter := newFakeGetter(map[string][]byte{
		"https://viewer.example.com/hd/1.jpg": []byte("p"),
	})
	session := NewSession(testSettings(), getter, panickingSink{}, nil)

	outcome, result, err := session.Start(context.Background(), demoBook(t, 1))
	if outcome != OutcomeStarted || err == nil {
		t.Fatalf("Start() = (%v, %v), want a recovered error", outcome, err)
	}
	if result.Status != StatusFailed {
		t.Errorf("Status = %q, want failed", result.Status)
	}
	if session.State() != StateIdle {
		t.Fatalf("State() = %v after panic, want idle", session.State())
	}

	// The session accepts new work.
	session.sink = &memorySink{}
	if outcome, _, err := session.Start(context.Background(), demoBook(t, 1)); outcome != OutcomeStarted || err != nil {
		t.Errorf("Start() after panic = (%v, %v)", outcome, err)
	}
}

func TestSession_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &memorySink{}
	session := NewSession(testSettings(), newFakeGetter(nil), sink, nil)

	_, _, err := session.Start(ctx, demoBook(t, 2))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Start() error = %v, want context.Canceled", err)
	}
	if len(sink.Deliveries()) != 0 {
		t.Error("a cancelled build delivered an archive")
	}
}

type recordingRecorder struct {
	results []*Result
}

func (r *recordingRecorder) Record(ctx context.Context, result *Result) error {
	r.results = append(r.results, result)
	return nil
}

func TestSession_Recorder(t *testing.T) {
	recorder := &recordingRecorder{}
	session := NewSession(testSettings(), newFakeGetter(map[string][]byte{
		"https://viewer.example.com/hd/1.jpg": []byte("p"),
	}), &memorySink{}, nil)
	session.SetRecorder(recorder)

	session.Start(context.Background(), demoBook(t, 1))
	session.Start(context.Background(), demoBook(t, 3))

	if len(recorder.results) != 2 {
		t.Fatalf("recorded %d results, want 2", len(recorder.results))
	}
	if recorder.results[0].Status != StatusCompleted {
		t.Errorf("first Status = %q", recorder.results[0].Status)
	}
	if recorder.results[1].Status != StatusPartial {
		t.Errorf("second Status = %q", recorder.results[1].Status)
	}
	if recorder.results[0].FinishedAt.IsZero() {
		t.Error("FinishedAt not set before recording")
	}
}

func TestSession_PagePanicIsTolerated(t *testing.T) {
	sink := &memorySink{}
	getter := panickingGetter{panicOn: "https://viewer.example.com/hd/2.jpg"}
	session := NewSession(testSettings(), getter, sink, nil)

	outcome, result, err := session.Start(context.Background(), demoBook(t, 3))
	if outcome != OutcomeStarted || err != nil {
		t.Fatalf("Start() = (%v, %v)", outcome, err)
	}
	if result.Status != StatusPartial || !reflect.DeepEqual(result.Missing, []int{2}) {
		t.Errorf("Result = %+v, want partial with page 2 missing", result)
	}
	if session.State() != StateIdle {
		t.Errorf("State() = %v, want idle", session.State())
	}
}
