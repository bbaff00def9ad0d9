package core

import (
	"regexp"
	"strings"
)

// Stage names one generation step of an outreach sequence.
type Stage string

const (
	StageInitial   Stage = "initial"
	StageFollowup1 Stage = "followup1"
	StageFollowup2 Stage = "followup2"
	StageSingle    Stage = "single"
)

// Mode selects the writing voice for a generation run.
type Mode string

const (
	ModeProspect Mode = "prospect"
	ModeMarcom   Mode = "marcom"
)

// Pathway is the caller-selected delivery mode for a run. It is chosen
// before generation begins and is not revisited mid-run.
type Pathway string

const (
	PathwayOneOff     Pathway = "one-off"
	PathwayThreeEmail Pathway = "three-email"
	PathwayJourney    Pathway = "journey"
)

// Stages returns the generation stages the pathway requires, in the
// order they must run.
func (p Pathway) Stages() []Stage {
	switch p {
	case PathwayOneOff:
		return []Stage{StageSingle}
	case PathwayThreeEmail, PathwayJourney:
		return []Stage{StageInitial, StageFollowup1, StageFollowup2}
	default:
		return nil
	}
}

// Valid reports whether the pathway is one of the closed set.
func (p Pathway) Valid() bool {
	switch p {
	case PathwayOneOff, PathwayThreeEmail, PathwayJourney:
		return true
	}
	return false
}

// Trigger classifies why a prospect is being contacted now.
type Trigger string

const (
	TriggerFunding Trigger = "funding"
	TriggerHiring  Trigger = "hiring"
	TriggerContent Trigger = "content"
	TriggerNews    Trigger = "news"
	TriggerNone    Trigger = "none"
)

func (t Trigger) valid() bool {
	switch t {
	case TriggerFunding, TriggerHiring, TriggerContent, TriggerNews, TriggerNone, "":
		return true
	}
	return false
}

// Prospect is the immutable input record for a generation run.
type Prospect struct {
	Company        string
	FirstName      string
	LastName       string
	Email          string
	Title          string
	Industry       string
	Trigger        Trigger
	TriggerDetails string
}

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validate checks required prospect fields. It must be called before any
// network work happens for the run.
func (p Prospect) Validate() error {
	if strings.TrimSpace(p.Company) == "" {
		return &ValidationError{Field: "company", Reason: "required"}
	}
	if strings.TrimSpace(p.FirstName) == "" {
		return &ValidationError{Field: "firstName", Reason: "required"}
	}
	email := strings.TrimSpace(p.Email)
	if email == "" {
		return &ValidationError{Field: "email", Reason: "required"}
	}
	if !emailRe.MatchString(email) {
		return &ValidationError{Field: "email", Reason: "invalid address"}
	}
	if !p.Trigger.valid() {
		return &ValidationError{Field: "trigger", Reason: "unknown trigger kind"}
	}
	return nil
}

// FullName joins first and last name, tolerating a missing last name.
func (p Prospect) FullName() string {
	name := strings.TrimSpace(p.FirstName)
	if last := strings.TrimSpace(p.LastName); last != "" {
		name += " " + last
	}
	return name
}

// EmailArtifact is one fully generated email. A stage either produces
// both fields or fails; partially populated artifacts never exist.
type EmailArtifact struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
