package model

import "github.com/rotisserie/eris"

// Error taxonomy shared across the engine. Callers classify failures with
// errors.Is so the CLI can map each kind to a distinct exit code.
var (
	// ErrReferenceNotFound: golden file missing for an article. Recoverable
	// by the operator; fatal for that article's score this run.
	ErrReferenceNotFound = eris.New("reference output not found")

	// ErrMalformedInput: reference or candidate JSON fails validation. The
	// article is skipped and counted as a failure; the run continues.
	ErrMalformedInput = eris.New("malformed input")

	// ErrInsufficientData: fewer points than the window requires. Distinct
	// from a threshold FAIL and reported with its own exit code.
	ErrInsufficientData = eris.New("insufficient window data")
)
