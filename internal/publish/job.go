package publish

import (
	"fmt"
	"time"

	"github.com/simplesurance/docpub/internal/releaseplan"
)

// ReleaseContext describes what triggered a publish run.
// Depending on the trigger either Ref or Plan is populated, a manual dispatch
// passes a ref, a release-pipeline callback passes a plan.
// It is immutable once created.
type ReleaseContext struct {
	Ref  string
	Plan *releaseplan.Plan
}

// Job is the per-run publish state.
// It is created once when a run starts and not mutated afterwards, the run
// stages only read it.
type Job struct {
	Version     string
	DisplayName string
	BranchName  string
	Timestamp   int64
}

// NewJob resolves the version from the release context and derives the
// branch name.
// The announcement tag of a release plan takes precedence over an explicit
// ref, when neither is present the version is "latest". Version resolution
// cannot fail.
func NewJob(releaseCtx *ReleaseContext, now time.Time) *Job {
	version := "latest"

	if releaseCtx != nil {
		switch {
		case releaseCtx.Plan != nil && releaseCtx.Plan.AnnouncementTag != "":
			version = releaseCtx.Plan.AnnouncementTag
		case releaseCtx.Ref != "":
			version = releaseCtx.Ref
		}
	}

	// displayName is the version today, it is kept as a separate field so
	// future display formatting does not require touching the consumers
	displayName := version
	timestamp := now.Unix()

	return &Job{
		Version:     version,
		DisplayName: displayName,
		BranchName:  branchName(displayName, timestamp),
		Timestamp:   timestamp,
	}
}

func (j *Job) String() string {
	return fmt.Sprintf("version: %s, branch: %s", j.Version, j.BranchName)
}
