package certificate

import (
	"strconv"
	"time"

	"cloud.google.com/go/civil"

	"printshop/internal/csvexport"
)

// Status is the stored validity tag of a certificate.
type Status string

const (
	StatusValid   Status = "valid"
	StatusInvalid Status = "invalid"
)

// Certificate is the persisted record, keyed by ID.
type Certificate struct {
	ID               string      `json:"certificateId"`
	CandidateName    string      `json:"candidateName"`
	Course           string      `json:"courseOrWorkshop"`
	IssueDate        civil.Date  `json:"issueDate"`
	CompletionDate   civil.Date  `json:"completionDate"`
	ExpiryDate       *civil.Date `json:"expiryDate"`
	Lifetime         bool        `json:"lifetime"`
	PerformanceScore int         `json:"performanceScore"`
	Status           Status      `json:"status"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// Result is what a verification returns. It is derived on every call and
// never stored.
type Result struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Course         string       `json:"course"`
	IssueDate      string       `json:"issueDate"`
	ExpiryDate     string       `json:"expiryDate"`
	CompletionDate string       `json:"completionDate"`
	Status         Status       `json:"status"`
	Score          int          `json:"score"`
	ExpiryStatus   ExpiryStatus `json:"expiryStatus"`
}

// NotAvailable fills every descriptive field of a not-found result.
const NotAvailable = "N/A"

// LifetimeLabel is shown in place of an expiry date for lifetime certificates.
const LifetimeLabel = "Lifetime (No Expiry)"

// Valid reports whether the result describes a valid certificate.
func (r Result) Valid() bool { return r.Status == StatusValid }

// NotFoundResult is the negative result for an unknown id.
func NotFoundResult(id string) Result {
	return Result{
		ID:             id,
		Name:           NotAvailable,
		Course:         NotAvailable,
		IssueDate:      NotAvailable,
		ExpiryDate:     NotAvailable,
		CompletionDate: NotAvailable,
		Status:         StatusInvalid,
		Score:          0,
		ExpiryStatus:   ExpiryInvalid,
	}
}

// ResultFor maps a stored certificate onto a verification result as of today.
func ResultFor(c Certificate, today civil.Date) Result {
	expiry := NotAvailable
	switch {
	case c.Lifetime:
		expiry = LifetimeLabel
	case c.ExpiryDate != nil:
		expiry = c.ExpiryDate.String()
	}
	return Result{
		ID:             c.ID,
		Name:           c.CandidateName,
		Course:         c.Course,
		IssueDate:      c.IssueDate.String(),
		ExpiryDate:     expiry,
		CompletionDate: c.CompletionDate.String(),
		Status:         c.Status,
		Score:          c.PerformanceScore,
		ExpiryStatus:   ComputeExpiryStatus(c.Lifetime, c.ExpiryDate, today),
	}
}

// View is a certificate annotated with its expiry status for admin listings.
type View struct {
	Certificate
	ExpiryStatus ExpiryStatus `json:"expiryStatus"`
	DaysLeft     *int         `json:"daysLeft,omitempty"`
}

func viewOf(c Certificate, today civil.Date) View {
	v := View{Certificate: c, ExpiryStatus: ComputeExpiryStatus(c.Lifetime, c.ExpiryDate, today)}
	if !c.Lifetime && c.ExpiryDate != nil {
		d := c.ExpiryDate.DaysSince(today)
		v.DaysLeft = &d
	}
	return v
}

func (v View) Row() csvexport.Record {
	expiry := ""
	if v.ExpiryDate != nil {
		expiry = v.ExpiryDate.String()
	}
	return csvexport.Record{
		{Name: "certificateId", Value: v.ID},
		{Name: "candidateName", Value: v.CandidateName},
		{Name: "courseOrWorkshop", Value: v.Course},
		{Name: "issueDate", Value: v.IssueDate.String()},
		{Name: "completionDate", Value: v.CompletionDate.String()},
		{Name: "expiryDate", Value: expiry},
		{Name: "lifetime", Value: strconv.FormatBool(v.Lifetime)},
		{Name: "performanceScore", Value: strconv.Itoa(v.PerformanceScore)},
		{Name: "status", Value: string(v.Status)},
		{Name: "expiryStatus", Value: string(v.ExpiryStatus)},
	}
}
