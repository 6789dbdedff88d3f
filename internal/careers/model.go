package careers

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"printshop/internal/csvexport"
)

const (
	jobsCollection         = "jobs"
	internshipsCollection  = "internships"
	applicationsCollection = "applications"
	newsletterCollection   = "job-newsletter"
)

// PostingStatus controls whether a posting is shown publicly.
type PostingStatus string

const (
	PostingActive      PostingStatus = "Active"
	PostingArchived    PostingStatus = "Archived"
	PostingUnderReview PostingStatus = "Under Review"
)

// Posting is a job or internship opening.
type Posting struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Specialization string        `json:"specialization,omitempty"`
	Description    string        `json:"description"`
	Duration       string        `json:"duration"`
	Mode           string        `json:"mode"`
	Stipend        string        `json:"stipend"`
	Skills         []string      `json:"skills"`
	Status         PostingStatus `json:"status"`
	ApplyLink      string        `json:"applyLink,omitempty"`
	DatePosted     civil.Date    `json:"datePosted"`
	CreatedAt      time.Time     `json:"createdAt"`
}

func (p Posting) Row() csvexport.Record {
	return csvexport.Record{
		{Name: "id", Value: p.ID},
		{Name: "title", Value: p.Title},
		{Name: "specialization", Value: p.Specialization},
		{Name: "description", Value: p.Description},
		{Name: "duration", Value: p.Duration},
		{Name: "mode", Value: p.Mode},
		{Name: "stipend", Value: p.Stipend},
		{Name: "skills", Value: strings.Join(p.Skills, "; ")},
		{Name: "status", Value: string(p.Status)},
		{Name: "applyLink", Value: p.ApplyLink},
		{Name: "datePosted", Value: p.DatePosted.String()},
	}
}

// ApplicationStatus tracks a candidate through review.
type ApplicationStatus string

const (
	ApplicationPending     ApplicationStatus = "Pending"
	ApplicationShortlisted ApplicationStatus = "Shortlisted"
	ApplicationRejected    ApplicationStatus = "Rejected"
	ApplicationHired       ApplicationStatus = "Hired"
)

// ValidApplicationStatus reports whether s is a known status.
func ValidApplicationStatus(s ApplicationStatus) bool {
	switch s {
	case ApplicationPending, ApplicationShortlisted, ApplicationRejected, ApplicationHired:
		return true
	}
	return false
}

// Application is a candidate's submission against a posting.
type Application struct {
	ID           string            `json:"id"`
	FullName     string            `json:"fullName"`
	Email        string            `json:"email"`
	Phone        string            `json:"phone"`
	PostingID    string            `json:"jobId"`
	PostingTitle string            `json:"jobTitle"`
	College      string            `json:"college,omitempty"`
	CurrentYear  string            `json:"currentYear,omitempty"`
	CGPA         string            `json:"cgpa,omitempty"`
	Experience   string            `json:"experience,omitempty"`
	CoverLetter  string            `json:"coverLetter,omitempty"`
	Status       ApplicationStatus `json:"status"`
	DateApplied  time.Time         `json:"dateApplied"`
}

func (a Application) Row() csvexport.Record {
	return csvexport.Record{
		{Name: "id", Value: a.ID},
		{Name: "fullName", Value: a.FullName},
		{Name: "email", Value: a.Email},
		{Name: "phone", Value: a.Phone},
		{Name: "jobId", Value: a.PostingID},
		{Name: "jobTitle", Value: a.PostingTitle},
		{Name: "college", Value: a.College},
		{Name: "currentYear", Value: a.CurrentYear},
		{Name: "cgpa", Value: a.CGPA},
		{Name: "experience", Value: a.Experience},
		{Name: "status", Value: string(a.Status)},
		{Name: "dateApplied", Value: a.DateApplied.Format(time.RFC3339)},
	}
}

// Subscriber is a job-newsletter signup.
type Subscriber struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s Subscriber) Row() csvexport.Record {
	return csvexport.Record{
		{Name: "id", Value: s.ID},
		{Name: "email", Value: s.Email},
		{Name: "createdAt", Value: s.CreatedAt.Format(time.RFC3339)},
	}
}

// normalizeSkills splits comma-separated entries and drops blanks.
func normalizeSkills(in []string) []string {
	out := []string{}
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
