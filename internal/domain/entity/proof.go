package entity

import (
	"time"
)

// ProofStatus is the review state of a proof. Pending moves to exactly one terminal state.
type ProofStatus string

const (
	ProofStatusPending  ProofStatus = "pending"
	ProofStatusApproved ProofStatus = "approved"
	ProofStatusRejected ProofStatus = "rejected"
)

// IsTerminal reports whether no further transition is allowed.
func (s ProofStatus) IsTerminal() bool {
	return s == ProofStatusApproved || s == ProofStatusRejected
}

// Proof is one day's evidence submitted by a member of a habit.
type Proof struct {
	ID          string      `json:"submissionId"`          // Unique proof id within the habit.
	HabitID     string      `json:"habitId"`               // Parent habit.
	SubmittedBy string      `json:"submittedBy"`           // Member who submitted the proof.
	Timestamp   time.Time   `json:"timestamp"`             // Server time of submission.
	URL         string      `json:"url,omitempty"`         // Retrievable location of the stored asset.
	ContentType string      `json:"contentType,omitempty"` // MIME type of the asset, empty for text-only proofs.
	Note        string      `json:"note,omitempty"`        // Optional caption or text proof.
	Status      ProofStatus `json:"status"`                // Review state.
	ReviewedBy  string      `json:"reviewedBy,omitempty"`  // Member who approved or rejected.
	ReviewedAt  *time.Time  `json:"reviewedAt,omitempty"`  // When the review happened.
}

// Day returns the calendar date of the submission in loc.
func (p *Proof) Day(loc *time.Location) Day {
	return DayOf(p.Timestamp, loc)
}

// ProofAsset is the opaque payload captured by the client.
type ProofAsset struct {
	Data        []byte
	ContentType string
	Note        string
}

// HasBlob reports whether there are bytes to upload.
func (a ProofAsset) HasBlob() bool {
	return len(a.Data) > 0
}

// IsEmpty reports whether the asset carries neither bytes nor a note.
func (a ProofAsset) IsEmpty() bool {
	return !a.HasBlob() && a.Note == ""
}
