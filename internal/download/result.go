package download

import (
	"fmt"
	"time"

	"github.com/maxpowa/actibook-downloader/internal/model"
)

// Status is the final state of one archive build.
type Status string

const (
	// StatusCompleted means every page was retrieved and delivered.
	StatusCompleted Status = "completed"

	// StatusPartial means the archive was delivered with some pages missing.
	StatusPartial Status = "partial"

	// StatusFailed means no archive was delivered.
	StatusFailed Status = "failed"
)

// Result describes one finished archive build.
type Result struct {
	ID       string
	Title    string
	FileName string

	// Location is where the sink stored the archive.
	Location string

	Tier      model.Tier
	Total     int
	Retrieved int

	// Missing lists the one-based numbers of pages that could not be retrieved.
	Missing []int

	// Size is the archive size in bytes.
	Size int64

	Status Status
	Error  string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Summary returns a short completion line such as "142/150 pages retrieved".
func (r *Result) Summary() string {
	return fmt.Sprintf("%d/%d pages retrieved", r.Retrieved, r.Total)
}

// Duration returns how long the build took.
func (r *Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
