package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/maxpowa/actibook-downloader/internal/config"
	"github.com/maxpowa/actibook-downloader/internal/download"
	"github.com/maxpowa/actibook-downloader/internal/history"
	bookhttp "github.com/maxpowa/actibook-downloader/internal/http"
	ioutils "github.com/maxpowa/actibook-downloader/internal/io"
	"github.com/maxpowa/actibook-downloader/internal/tui"
)

func main() {
	configFlag := flag.String("config", "", "Path to config file (.json or .toml)")
	flag.Parse()

	if err := run(*configFlag); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	settings := config.DefaultSettings()
	if configPath != "" {
		var err error
		if settings, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if err := settings.ApplyEnv(); err != nil {
		return err
	}

	client, err := bookhttp.NewClient(settings)
	if err != nil {
		return err
	}

	if err := ioutils.EnsureDir(settings.OutputDir); err != nil {
		return err
	}

	var recorder download.Recorder
	if store, err := history.Open(settings.HistoryPath); err == nil {
		defer store.Close()
		recorder = store
	}

	return tui.Run(tui.NewModel(settings, client, ioutils.NewFileSink(settings.OutputDir), recorder))
}
