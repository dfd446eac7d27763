package types

// SubmissionStatus tracks a signed extrinsic through the submission pool.
// Finalized and Failed are terminal.
type SubmissionStatus int

const (
	StatusSubmitted SubmissionStatus = iota
	StatusInBlock
	StatusFinalized
	StatusFailed
)

func (s SubmissionStatus) String() string {
	switch s {
	case StatusSubmitted:
		return "SUBMITTED"
	case StatusInBlock:
		return "IN_BLOCK"
	case StatusFinalized:
		return "FINALIZED"
	case StatusFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// StatusUpdate is one transition in a submission's lifecycle. Block is set
// for IN_BLOCK and FINALIZED, Err for FAILED.
type StatusUpdate struct {
	Status SubmissionStatus
	Block  BlockRef
	Err    error
}
