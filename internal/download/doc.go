// Package download provides the archive-assembly pipeline that turns an
// ActiBook book into a single ZIP file.
//
// # Session
//
// The Session coordinates one archive build at a time:
//
//  1. Validate the book
//  2. Probe the HD tier and fall back to SD when it is not reachable
//  3. Fetch every page concurrently, tolerating individual failures
//  4. Pack the retrieved pages into an in-memory ZIP
//  5. Derive "<sanitized title>.zip" and hand the archive to a Sink
//
// # Basic Usage
//
//	session := download.NewSession(settings, client, sink, func(event download.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//
//	outcome, result, err := session.Start(ctx, book)
//	if outcome == download.OutcomeAlreadyRunning {
//	    // another build is in progress; nothing was done
//	}
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Summary()) // "142/150 pages retrieved"
//
// # Single Flight
//
// A Session runs at most one build. Start while a build is in progress
// returns OutcomeAlreadyRunning immediately; the request is dropped, not
// queued. The running state is released on every exit path.
//
// # Concurrency
//
// All pages of a book are requested at once unless
// settings.MaxConcurrentPages caps the fan-out. The fetcher always waits
// for every page to settle before the archive is built, and results keep
// page order regardless of completion order.
//
// # Failure Handling
//
// A failed quality probe means "tier unavailable". A failed page is
// reported as a warning and left out of the archive. Nothing is retried.
// A build in which no page could be retrieved fails with ErrNoPages unless
// settings.AllowEmptyArchive is set.
package download
