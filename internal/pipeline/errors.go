package pipeline

import (
	"errors"
	"fmt"
)

// Kind classifies why a submission failed.
type Kind int

const (
	BadInput Kind = iota + 1
	Unauthorized
	ValidationFailed
	UpstreamFailure
	InternalConfiguration
)

func (k Kind) String() string {
	switch k {
	case BadInput:
		return "BadInput"
	case Unauthorized:
		return "Unauthorized"
	case ValidationFailed:
		return "ValidationFailed"
	case UpstreamFailure:
		return "UpstreamFailure"
	case InternalConfiguration:
		return "InternalConfiguration"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Status is the classification reported to the caller.
func (k Kind) Status() string {
	switch k {
	case BadInput, ValidationFailed:
		return "bad input"
	case Unauthorized:
		return "unauthorized"
	}
	return "internal"
}

// Stage names a step of the pipeline.
type Stage string

const (
	StageDemux     Stage = "demux"
	StageAuth      Stage = "authenticate"
	StagePlan      Stage = "plan"
	StageResolve   Stage = "resolve"
	StageValidate  Stage = "validate"
	StageClone     Stage = "clone"
	StageUpload    Stage = "upload"
	StageRender    Stage = "render"
	StageCommit    Stage = "commit"
	StageCampaign  Stage = "campaign"
	StagePublished Stage = "published"
)

// Error is a failed submission: the stage it stopped at and why.
type Error struct {
	Kind  Kind
	Stage Stage
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Stage != "" {
		msg = string(e.Stage) + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, stage Stage, msg string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Msg: msg, Err: err}
}

// AsError extracts a pipeline error from err. Errors that did not come from
// the pipeline are reported as internal failures of an unknown stage.
func AsError(err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}
	return &Error{Kind: InternalConfiguration, Msg: "unexpected error", Err: err}
}
