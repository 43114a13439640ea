package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/maxpowa/actibook-downloader/internal/actibook"
	"github.com/maxpowa/actibook-downloader/internal/config"
	"github.com/maxpowa/actibook-downloader/internal/download"
	"github.com/maxpowa/actibook-downloader/internal/history"
	bookhttp "github.com/maxpowa/actibook-downloader/internal/http"
	ioutils "github.com/maxpowa/actibook-downloader/internal/io"
)

// options holds the parsed command line.
type options struct {
	urls         string
	output       string
	config       string
	verbose      bool
	dryRun       bool
	history      bool
	historyLimit int
	args         []string
}

func main() {
	var opts options

	// Command line flags
	flag.StringVar(&opts.urls, "url", "", "ActiBook viewer URL(s) to archive (comma-separated or newline-separated)")
	flag.StringVar(&opts.output, "output", "", "Output directory (overrides config)")
	flag.StringVar(&opts.config, "config", "", "Path to config file (.json or .toml)")
	flag.BoolVar(&opts.verbose, "verbose", false, "Show verbose output")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "Read viewer pages and probe quality without downloading")
	flag.BoolVar(&opts.history, "history", false, "Show recently archived books and exit")
	flag.IntVar(&opts.historyLimit, "limit", 20, "Number of runs shown by -history")

	flag.Parse()
	opts.args = flag.Args()

	os.Exit(run(opts))
}

// run executes the command and returns the process exit code. Deferred
// cleanup happens before main exits.
func run(opts options) int {
	settings, err := loadSettings(opts.config, opts.output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 1
	}

	out := newPrinter(os.Stdout, opts.verbose)

	if opts.history {
		if err := showHistory(settings.HistoryPath, opts.historyLimit); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading history: %v\n", err)
			return 1
		}
		return 0
	}

	// CLI mode - require URL
	if opts.urls == "" && len(opts.args) == 0 {
		fmt.Println("ActiBook Downloader - Save ActiBook books as ZIP archives")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  actibook-dl -url <URL> [options]")
		fmt.Println("  actibook-dl <URL> [options]")
		fmt.Println("  actibook-dl -history")
		fmt.Println()
		fmt.Println("For interactive mode, use: actibook-tui")
		fmt.Println()
		flag.PrintDefaults()
		return 1
	}

	urls := opts.urls
	if urls == "" {
		urls = strings.Join(opts.args, "\n")
	}
	pageURLs := splitURLs(urls)

	// Handle interrupts
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\nInterrupted, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	client, err := bookhttp.NewClient(settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating HTTP client: %v\n", err)
		return 1
	}

	out.Header("📚 ActiBook Downloader")

	if opts.dryRun {
		if failed := dryRun(ctx, client, pageURLs, out); failed > 0 {
			return 1
		}
		return 0
	}

	return archiveAll(ctx, settings, client, pageURLs, out)
}

// archiveAll archives every viewer page in turn while holding the output
// directory lock, and returns the exit code.
func archiveAll(ctx context.Context, settings *config.Settings, client *bookhttp.Client, pageURLs []string, out *printer) int {
	if err := ioutils.EnsureDir(settings.OutputDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		return 1
	}

	// Only one actibook-dl may write into an output directory at a time.
	lock := ioutils.NewDirLock(settings.OutputDir)
	locked, err := lock.TryLock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error locking output directory: %v\n", err)
		return 1
	}
	if !locked {
		fmt.Fprintf(os.Stderr, "Another actibook-dl is already writing to %s (lock: %s)\n", settings.OutputDir, lock.Path())
		return 1
	}
	defer lock.Unlock()

	session := download.NewSession(settings, client, ioutils.NewFileSink(settings.OutputDir), out.Event)

	store, err := history.Open(settings.HistoryPath)
	if err != nil {
		out.Event(download.ProgressEvent{Message: fmt.Sprintf("Run history disabled: %v", err), Level: download.LevelWarning})
	} else {
		defer store.Close()
		session.SetRecorder(store)
	}

	parser := actibook.NewParser()
	var failed, completed int

	for _, pageURL := range pageURLs {
		if ctx.Err() != nil {
			break
		}

		out.Event(download.ProgressEvent{Message: "Reading " + pageURL, Level: download.LevelInfo})
		book, err := parser.LoadViewerPage(ctx, client, pageURL)
		if err != nil {
			out.Event(download.ProgressEvent{Message: fmt.Sprintf("Could not read %s: %v", pageURL, err), Level: download.LevelError})
			failed++
			continue
		}

		_, result, err := session.Start(ctx, book)
		if err != nil {
			failed++
			continue
		}
		completed++
		out.Event(download.ProgressEvent{
			Message: fmt.Sprintf("%s → %s (%s, %s in %s)", result.Title, result.Location, result.Summary(),
				humanize.Bytes(uint64(result.Size)), result.Duration().Round(time.Millisecond)),
			Level: download.LevelVerbose,
		})
	}

	if ctx.Err() != nil {
		fmt.Println("\nArchiving cancelled.")
		return 130
	}

	out.Rule()
	fmt.Printf("✨ Complete! Archived %d/%d books\n", completed, len(pageURLs))
	if failed > 0 {
		return 1
	}
	return 0
}

func loadSettings(configPath, outputDir string) (*config.Settings, error) {
	settings := config.DefaultSettings()
	if configPath != "" {
		var err error
		settings, err = config.Load(configPath)
		if err != nil {
			return nil, err
		}
	}

	if err := settings.ApplyEnv(); err != nil {
		return nil, err
	}

	// Apply flags
	if outputDir != "" {
		settings.OutputDir = outputDir
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// dryRun reads every viewer page and reports the quality tier that would
// be used, without fetching any page beyond the probe.
func dryRun(ctx context.Context, client *bookhttp.Client, pageURLs []string, out *printer) int {
	parser := actibook.NewParser()
	prober := download.NewProber(client, out.Event)

	var rows [][]string
	failed := 0
	for _, pageURL := range pageURLs {
		if ctx.Err() != nil {
			break
		}
		book, err := parser.LoadViewerPage(ctx, client, pageURL)
		if err != nil {
			out.Event(download.ProgressEvent{Message: fmt.Sprintf("Could not read %s: %v", pageURL, err), Level: download.LevelError})
			failed++
			continue
		}
		tier, _ := prober.SelectDefinition(ctx, book)
		rows = append(rows, dryRunRow(book.Title, book.LastPage, tier.String()))
	}

	if len(rows) > 0 {
		fmt.Println(renderTable([]string{"Title", "Pages", "Quality", "Archive"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft}))
	}
	fmt.Println("\n[Dry run - not downloading]")
	return failed
}

// splitURLs splits user input on commas and newlines, dropping blanks and
// duplicates while keeping order.
func splitURLs(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})

	seen := make(map[string]bool)
	var urls []string
	for _, field := range fields {
		u := strings.TrimSpace(field)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}
