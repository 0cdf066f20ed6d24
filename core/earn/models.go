package earn

import (
	"encoding/json"
	"io"
	"time"

	"github.com/learnearn/hub/core"
	"github.com/learnearn/hub/core/session"
)

// Assignment statuses as displayed; transitions happen server side.
const (
	StatusAvailable = "available"
	StatusAccepted  = "accepted"
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// User is an account as listed in the admin back-office.
type User = session.UserProfile

type (
	Assignment struct {
		ID          core.ID     `json:"id"`
		Title       string      `json:"title"`
		Description string      `json:"description,omitempty"`
		Subject     string      `json:"subject,omitempty"`
		Type        string      `json:"type,omitempty"`
		Price       core.Amount `json:"price,omitempty"`
		Deadline    string      `json:"deadline,omitempty"`
		DueDate     string      `json:"dueDate,omitempty"`
		FileURL     string      `json:"fileUrl,omitempty"`
		Status      string      `json:"status,omitempty"`
	}

	Submission struct {
		ID         core.ID `json:"id"`
		Title      string  `json:"title"`
		Department string  `json:"department,omitempty"`
		CreatedAt  string  `json:"createdAt,omitempty"`
	}

	Payment struct {
		ID     core.ID     `json:"id"`
		User   *Payee      `json:"user,omitempty"`
		Amount core.Amount `json:"amount"`
		Date   string      `json:"date,omitempty"`
		Status string      `json:"status,omitempty"`
	}

	Payee struct {
		Name  string `json:"name"`
		Email string `json:"email,omitempty"`
	}

	// Wallet is the signed-in user's earnings summary.
	Wallet struct {
		Balance   core.Amount `json:"balance"`
		Referrals Referrals   `json:"referrals"`
	}

	Referrals struct {
		Count  int `json:"count"`
		Points int `json:"points"`
	}
)

// DisplayDate renders an API date (RFC 3339 or YYYY-MM-DD) as YYYY-MM-DD.
// Unknown layouts are shown as sent; empty dates as "N/A".
func DisplayDate(s string) string {
	if s == "" {
		return "N/A"
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

// DisplayStatus defaults a missing status to pending.
func (a Assignment) DisplayStatus() string {
	if a.Status == "" {
		return StatusPending
	}
	return a.Status
}

func (p Payment) PayeeName() string {
	if p.User == nil || p.User.Name == "" {
		return "Unknown"
	}
	return p.User.Name
}

func (p Payment) DisplayStatus() string {
	if p.Status == "" {
		return StatusPending
	}
	return p.Status
}

func (a *Assignment) UnmarshalJSON(b []byte) error {
	type alias Assignment
	aux := struct {
		*alias
		OID core.ID `json:"_id"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = aux.OID
	}
	return nil
}

func (s *Submission) UnmarshalJSON(b []byte) error {
	type alias Submission
	aux := struct {
		*alias
		OID core.ID `json:"_id"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if s.ID == "" {
		s.ID = aux.OID
	}
	return nil
}

func (p *Payment) UnmarshalJSON(b []byte) error {
	type alias Payment
	aux := struct {
		*alias
		OID core.ID `json:"_id"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = aux.OID
	}
	return nil
}

// NewAssignment is the admin form for publishing an assignment.
// Price and Deadline are optional and left out of the request when empty.
type NewAssignment struct {
	Title       string      `form:"title" validate:"notblank,max=200"`
	Description string      `form:"description" validate:"notblank"`
	Type        string      `form:"type" validate:"omitempty,max=50"`
	Price       string      `form:"price" validate:"omitempty,numeric"`
	Deadline    string      `form:"deadline" validate:"omitempty,datetime=2006-01-02"`
	File        *Attachment `form:"-"`
}

func (na *NewAssignment) Clean() {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.Type = core.CleanString(na.Type, true /* lower */)
	na.Price = core.CleanString(na.Price)
	na.Deadline = core.CleanString(na.Deadline)
}

// Attachment is an optional file uploaded with a NewAssignment.
type Attachment struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// UnmarshalJSON accepts an unpopulated reference (a bare id) as an unnamed payee.
func (p *Payee) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		*p = Payee{}
		return nil
	}
	type alias Payee
	return json.Unmarshal(b, (*alias)(p))
}
