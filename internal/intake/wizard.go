// Package intake runs the four-step lead wizard: name, email, phone, company.
package intake

import (
	"errors"

	"leadcapture/internal/lead/models"
	"leadcapture/internal/lead/validation"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusSubmitting Status = "submitting"
	StatusSubmitted  Status = "submitted"
)

// ErrWizardComplete is returned for answers sent once the wizard has left the
// question steps.
var ErrWizardComplete = errors.New("wizard already submitted")

// steps lists the question asked at each step index.
var steps = [...]validation.FieldKind{
	validation.FieldName,
	validation.FieldEmail,
	validation.FieldPhone,
	validation.FieldCompany,
}

// LastStep is the index of the final question.
const LastStep = len(steps) - 1

// Wizard is the per-visitor state machine. Step only moves forward.
type Wizard struct {
	Step    int           `json:"step"`
	Answers models.Fields `json:"answers"`
	Status  Status        `json:"status"`
	// ErrorCode mirrors Error for storage; empty when the last answer was accepted.
	ErrorCode string                      `json:"error,omitempty"`
	Error     *validation.ValidationError `json:"-"`
}

func NewWizard() Wizard {
	return Wizard{Status: StatusInProgress}
}

// Question is the field asked at the current step.
func (w *Wizard) Question() validation.FieldKind {
	if w.Step < 0 || w.Step > LastStep {
		return steps[LastStep]
	}
	return steps[w.Step]
}

// Progress is the fraction shown on the progress bar, (step+1)/4.
func (w *Wizard) Progress() float64 {
	return float64(w.Step+1) / float64(len(steps))
}

// Submit validates value against the current question. On failure the step
// is unchanged and the error is kept on the wizard. On success the answer is
// stored and the wizard advances, or moves to submitting after the last step.
func (w *Wizard) Submit(value string) error {
	if w.Status != StatusInProgress {
		return ErrWizardComplete
	}
	field := w.Question()
	if err := validation.Validate(field, value); err != nil {
		ve, _ := validation.AsValidationError(err)
		w.Error = ve
		w.ErrorCode = ve.Code()
		return err
	}

	w.Error = nil
	w.ErrorCode = ""
	switch field {
	case validation.FieldName:
		w.Answers.Name = value
	case validation.FieldEmail:
		w.Answers.Email = value
	case validation.FieldPhone:
		w.Answers.Phone = value
	case validation.FieldCompany:
		w.Answers.Company = value
	}

	if w.Step < LastStep {
		w.Step++
		return nil
	}
	w.Status = StatusSubmitting
	return nil
}

// MarkSubmitted ends the wizard. Only valid from submitting.
func (w *Wizard) MarkSubmitted() {
	if w.Status == StatusSubmitting {
		w.Status = StatusSubmitted
	}
}
