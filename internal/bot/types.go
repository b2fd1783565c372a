package bot

import (
	"time"
)

// Outcome is the terminal state of one submission within a poll cycle.
type Outcome string

// Submission outcomes recorded by the pipeline.
const (
	OutcomeFiltered       Outcome = "filtered"
	OutcomeDedupSkip      Outcome = "dedup_skip"
	OutcomeAlreadyReplied Outcome = "already_replied"
	OutcomeReplied        Outcome = "replied"
	OutcomeFailed         Outcome = "failed"
)

// Submission is the read-only view of a feed submission consumed by the pipeline.
type Submission struct {
	ID       string
	Domain   string
	URL      string // outbound link; self posts point back at the feed
	IsSelf   bool
	BodyHTML string // rendered markup of a self post, possibly entity-escaped
	Archived bool
}

// Comment is a single flattened comment on a submission.
type Comment struct {
	ID     string
	Author string
}

// WikiPage is the content and revision of a feed wiki page.
type WikiPage struct {
	Content  string
	Revision int64
}

// LinkCandidate is an outbound link found in a submission.
type LinkCandidate struct {
	RawURL        string
	NormalizedURL string
	Label         string
}

// ArchivedLink pairs a display label with its resolved snapshot URL.
type ArchivedLink struct {
	Label      string
	ArchiveURL string
}

// LedgerEntry is a processed-submission record.
type LedgerEntry struct {
	SubmissionID string
	RecordedAt   time.Time
}

// Permalink returns the short link used in logs and as the self-archive target.
func Permalink(base, submissionID string) string {
	if base == "" {
		base = "http://redd.it/"
	}
	return base + submissionID
}
