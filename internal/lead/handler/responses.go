package handler

import (
	"leadcapture/internal/intake"
	"leadcapture/internal/lead/models"
	"leadcapture/internal/lead/validation"
)

// SessionResponse is the wizard state the page renders.
type SessionResponse struct {
	ID       string        `json:"id"`
	Step     int           `json:"step"`
	Question string        `json:"question"`
	Progress float64       `json:"progress"`
	Status   string        `json:"status"`
	Answers  models.Fields `json:"answers"`
	Error    string        `json:"error,omitempty"`
}

func toSessionResponse(s *intake.Session) SessionResponse {
	return SessionResponse{
		ID:       s.ID,
		Step:     s.Step,
		Question: string(s.Question()),
		Progress: s.Progress(),
		Status:   string(s.Status),
		Answers:  s.Answers,
		Error:    s.ErrorCode,
	}
}

// ValidationErrorResponse is the 422 body for a rejected answer.
type ValidationErrorResponse struct {
	Error       string           `json:"error"`
	Description string           `json:"error_description"`
	Field       string           `json:"field"`
	Reason      string           `json:"reason"`
	Session     *SessionResponse `json:"session,omitempty"`
}

func toValidationErrorResponse(ve *validation.ValidationError, lang string) ValidationErrorResponse {
	return ValidationErrorResponse{
		Error:       "validation_error",
		Description: ve.Message(lang),
		Field:       ve.FieldName(),
		Reason:      ve.Code(),
	}
}

type AnswerRequest struct {
	Value string `json:"value"`
}

type TriggerRequest struct {
	Reason string `json:"reason"`
}

type ExitIntentSubmitRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type ArmResponse struct {
	Armed bool `json:"armed"`
}

type TriggerResponse struct {
	Fired bool `json:"fired"`
}

type SubmitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// LeadResponse is a lead as the dashboard lists it.
type LeadResponse struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Company   string `json:"company"`
	Source    string `json:"source"`
	Deletable bool   `json:"deletable"`
}

type LeadsResponse struct {
	Leads   []LeadResponse `json:"leads"`
	Warning string         `json:"warning,omitempty"`
}

func toLeadsResponse(records []models.LeadRecord, warning string) LeadsResponse {
	out := make([]LeadResponse, 0, len(records))
	for _, r := range records {
		out = append(out, LeadResponse{
			ID:        r.ID,
			Date:      r.Date,
			Name:      r.Name,
			Email:     r.Email,
			Phone:     r.Phone,
			Company:   r.Company,
			Source:    string(r.Source),
			Deletable: r.Deletable(),
		})
	}
	return LeadsResponse{Leads: out, Warning: warning}
}

type DeleteResponse struct {
	Status string `json:"status"`
}
