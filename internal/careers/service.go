// Package careers manages job and internship postings, applications and the
// job newsletter.
package careers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"printshop/internal/apperr"
	"printshop/internal/docstore"
	"printshop/internal/idgen"
)

// Service coordinates postings, applications and newsletter signups.
type Service struct {
	store docstore.Store
	ids   *idgen.Generator
	loc   *time.Location
	now   func() time.Time
	log   *zap.Logger
}

// NewService creates a careers service. loc decides which calendar day a
// posting is dated.
func NewService(store docstore.Store, ids *idgen.Generator, loc *time.Location, log *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, ids: ids, loc: loc, now: time.Now, log: log.With(zap.String("component", "careers"))}
}

func collectionFor(kind idgen.Kind) (string, error) {
	switch kind {
	case idgen.Job:
		return jobsCollection, nil
	case idgen.Internship:
		return internshipsCollection, nil
	}
	return "", fmt.Errorf("%w: %q is not a posting kind", idgen.ErrUnknownKind, kind)
}

// PostingInput is the admin form for a job or internship.
type PostingInput struct {
	Title          string        `json:"title" validate:"required"`
	Specialization string        `json:"specialization"`
	Description    string        `json:"description" validate:"required"`
	Duration       string        `json:"duration"`
	Mode           string        `json:"mode"`
	Stipend        string        `json:"stipend"`
	Skills         []string      `json:"skills"`
	Status         PostingStatus `json:"status" validate:"omitempty,oneof=Active Archived 'Under Review'"`
	ApplyLink      string        `json:"applyLink" validate:"omitempty,url"`
}

// CreatePosting validates input and stores a new posting under the next id
// for kind.
func (s *Service) CreatePosting(ctx context.Context, kind idgen.Kind, in PostingInput) (Posting, error) {
	col, err := collectionFor(kind)
	if err != nil {
		return Posting{}, err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := apperr.Validate(in); err != nil {
		return Posting{}, err
	}
	if in.Status == "" {
		in.Status = PostingActive
	}

	now := s.now()
	p := Posting{
		Title:          in.Title,
		Specialization: strings.TrimSpace(in.Specialization),
		Description:    in.Description,
		Duration:       strings.TrimSpace(in.Duration),
		Mode:           strings.TrimSpace(in.Mode),
		Stipend:        strings.TrimSpace(in.Stipend),
		Skills:         normalizeSkills(in.Skills),
		Status:         in.Status,
		ApplyLink:      strings.TrimSpace(in.ApplyLink),
		DatePosted:     civil.DateOf(now.In(s.loc)),
		CreatedAt:      now.UTC(),
	}
	id, err := s.ids.Assign(ctx, kind, func(id string) error {
		p.ID = id
		return s.store.Create(ctx, col, id, p)
	})
	if err != nil {
		return Posting{}, apperr.FromWrite(string(kind)+" "+p.ID, err)
	}
	s.log.Info("posting created", zap.String("kind", string(kind)), zap.String("id", id))
	return p, nil
}

// ListPostings returns postings of kind in creation order. With activeOnly,
// only publicly visible ones are returned.
func (s *Service) ListPostings(ctx context.Context, kind idgen.Kind, activeOnly bool) ([]Posting, error) {
	col, err := collectionFor(kind)
	if err != nil {
		return nil, err
	}
	all, err := docstore.ListAs[Posting](ctx, s.store, col)
	if err != nil {
		return nil, apperr.FromRead(col, err)
	}
	if !activeOnly {
		return all, nil
	}
	out := []Posting{}
	for _, p := range all {
		if p.Status == PostingActive {
			out = append(out, p)
		}
	}
	return out, nil
}

// PostingPatch holds editable posting fields. Nil means unchanged.
type PostingPatch struct {
	Title          *string        `json:"title"`
	Specialization *string        `json:"specialization"`
	Description    *string        `json:"description"`
	Duration       *string        `json:"duration"`
	Mode           *string        `json:"mode"`
	Stipend        *string        `json:"stipend"`
	Skills         []string       `json:"skills"`
	Status         *PostingStatus `json:"status"`
	ApplyLink      *string        `json:"applyLink"`
}

// UpdatePosting applies a partial edit.
func (s *Service) UpdatePosting(ctx context.Context, kind idgen.Kind, id string, patch PostingPatch) (Posting, error) {
	col, err := collectionFor(kind)
	if err != nil {
		return Posting{}, err
	}
	id = strings.ToUpper(strings.TrimSpace(id))
	current, err := docstore.GetAs[Posting](ctx, s.store, col, id)
	if err != nil {
		return Posting{}, apperr.FromRead(string(kind)+" "+id, err)
	}

	fields := map[string]any{}
	setString := func(name string, v *string, dst *string, required bool) error {
		if v == nil {
			return nil
		}
		val := strings.TrimSpace(*v)
		if required && val == "" {
			return apperr.Invalid(name, "is required")
		}
		*dst = val
		fields[name] = val
		return nil
	}
	for _, f := range []struct {
		name     string
		v        *string
		dst      *string
		required bool
	}{
		{"title", patch.Title, &current.Title, true},
		{"specialization", patch.Specialization, &current.Specialization, false},
		{"description", patch.Description, &current.Description, true},
		{"duration", patch.Duration, &current.Duration, false},
		{"mode", patch.Mode, &current.Mode, false},
		{"stipend", patch.Stipend, &current.Stipend, false},
		{"applyLink", patch.ApplyLink, &current.ApplyLink, false},
	} {
		if err := setString(f.name, f.v, f.dst, f.required); err != nil {
			return Posting{}, err
		}
	}
	if patch.ApplyLink != nil {
		if err := apperr.ValidateField("applyLink", current.ApplyLink, "omitempty,url"); err != nil {
			return Posting{}, err
		}
	}
	if patch.Skills != nil {
		current.Skills = normalizeSkills(patch.Skills)
		fields["skills"] = current.Skills
	}
	if patch.Status != nil {
		switch *patch.Status {
		case PostingActive, PostingArchived, PostingUnderReview:
		default:
			return Posting{}, apperr.Invalid("status", "must be one of: Active, Archived, Under Review")
		}
		current.Status = *patch.Status
		fields["status"] = current.Status
	}
	if len(fields) == 0 {
		return current, nil
	}
	if err := s.store.Update(ctx, col, id, fields); err != nil {
		return Posting{}, apperr.FromWrite(string(kind)+" "+id, err)
	}
	return current, nil
}

// DeletePosting removes a posting. Applications that reference it are kept.
func (s *Service) DeletePosting(ctx context.Context, kind idgen.Kind, id string) error {
	col, err := collectionFor(kind)
	if err != nil {
		return err
	}
	id = strings.ToUpper(strings.TrimSpace(id))
	if err := s.store.Delete(ctx, col, id); err != nil {
		return apperr.FromWrite(string(kind)+" "+id, err)
	}
	s.log.Info("posting deleted", zap.String("kind", string(kind)), zap.String("id", id))
	return nil
}

// ApplicationInput is the public application form.
type ApplicationInput struct {
	FullName    string `json:"fullName" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required,min=7,max=20"`
	PostingID   string `json:"jobId" validate:"required"`
	College     string `json:"college"`
	CurrentYear string `json:"currentYear"`
	CGPA        string `json:"cgpa"`
	Experience  string `json:"experience"`
	CoverLetter string `json:"coverLetter" validate:"max=5000"`
}

// Apply records an application against an Active posting.
func (s *Service) Apply(ctx context.Context, in ApplicationInput) (Application, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)
	in.PostingID = strings.ToUpper(strings.TrimSpace(in.PostingID))
	if err := apperr.Validate(in); err != nil {
		return Application{}, err
	}

	posting, err := s.findPosting(ctx, in.PostingID)
	if err != nil {
		return Application{}, err
	}
	if posting.Status != PostingActive {
		return Application{}, apperr.Invalid("jobId", "posting %s is not accepting applications", posting.ID)
	}

	app := Application{
		ID:           uuid.NewString(),
		FullName:     in.FullName,
		Email:        in.Email,
		Phone:        in.Phone,
		PostingID:    posting.ID,
		PostingTitle: posting.Title,
		College:      strings.TrimSpace(in.College),
		CurrentYear:  strings.TrimSpace(in.CurrentYear),
		CGPA:         strings.TrimSpace(in.CGPA),
		Experience:   strings.TrimSpace(in.Experience),
		CoverLetter:  strings.TrimSpace(in.CoverLetter),
		Status:       ApplicationPending,
		DateApplied:  s.now().UTC(),
	}
	if err := s.store.Create(ctx, applicationsCollection, app.ID, app); err != nil {
		return Application{}, apperr.FromWrite("application "+app.ID, err)
	}
	s.log.Info("application received", zap.String("id", app.ID), zap.String("posting", posting.ID))
	return app, nil
}

func (s *Service) findPosting(ctx context.Context, id string) (Posting, error) {
	for _, col := range []string{jobsCollection, internshipsCollection} {
		p, err := docstore.GetAs[Posting](ctx, s.store, col, id)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, docstore.ErrNotFound) {
			return Posting{}, apperr.FromRead("posting "+id, err)
		}
	}
	return Posting{}, apperr.Invalid("jobId", "no posting with id %s", id)
}

// ListApplications returns every application in submission order.
func (s *Service) ListApplications(ctx context.Context) ([]Application, error) {
	apps, err := docstore.ListAs[Application](ctx, s.store, applicationsCollection)
	if err != nil {
		return nil, apperr.FromRead(applicationsCollection, err)
	}
	return apps, nil
}

// SetApplicationStatus moves an application to a new review status.
func (s *Service) SetApplicationStatus(ctx context.Context, id string, status ApplicationStatus) error {
	if !ValidApplicationStatus(status) {
		return apperr.Invalid("status", "must be one of: Pending, Shortlisted, Rejected, Hired")
	}
	if err := s.store.Update(ctx, applicationsCollection, id, map[string]any{"status": status}); err != nil {
		return apperr.FromWrite("application "+id, err)
	}
	return nil
}

type subscribeInput struct {
	Email string `json:"email" validate:"required,email"`
}

// Subscribe adds email to the job newsletter. Emails are compared
// case-insensitively; created is false when the address was already there.
func (s *Service) Subscribe(ctx context.Context, email string) (sub Subscriber, created bool, err error) {
	in := subscribeInput{Email: strings.ToLower(strings.TrimSpace(email))}
	if err := apperr.Validate(in); err != nil {
		return Subscriber{}, false, err
	}
	sub = Subscriber{ID: uuid.NewString(), Email: in.Email, CreatedAt: s.now().UTC()}
	// Keyed by address so the store rejects duplicates atomically.
	err = s.store.Create(ctx, newsletterCollection, in.Email, sub)
	switch {
	case errors.Is(err, docstore.ErrExists):
		existing, err := docstore.GetAs[Subscriber](ctx, s.store, newsletterCollection, in.Email)
		if err != nil {
			return Subscriber{}, false, apperr.FromRead("subscriber", err)
		}
		return existing, false, nil
	case err != nil:
		return Subscriber{}, false, apperr.FromWrite("subscriber", err)
	}
	return sub, true, nil
}

// ListSubscribers returns newsletter signups in order.
func (s *Service) ListSubscribers(ctx context.Context) ([]Subscriber, error) {
	subs, err := docstore.ListAs[Subscriber](ctx, s.store, newsletterCollection)
	if err != nil {
		return nil, apperr.FromRead(newsletterCollection, err)
	}
	return subs, nil
}

// Counts summarises the careers collections for the dashboard.
type Counts struct {
	Jobs         int `json:"jobs"`
	Internships  int `json:"internships"`
	Applications int `json:"applications"`
	Pending      int `json:"pendingApplications"`
	Subscribers  int `json:"subscribers"`
}

func (s *Service) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	jobs, err := s.ListPostings(ctx, idgen.Job, false)
	if err != nil {
		return c, err
	}
	interns, err := s.ListPostings(ctx, idgen.Internship, false)
	if err != nil {
		return c, err
	}
	apps, err := s.ListApplications(ctx)
	if err != nil {
		return c, err
	}
	subs, err := s.ListSubscribers(ctx)
	if err != nil {
		return c, err
	}
	c.Jobs, c.Internships, c.Applications, c.Subscribers = len(jobs), len(interns), len(apps), len(subs)
	for _, a := range apps {
		if a.Status == ApplicationPending {
			c.Pending++
		}
	}
	return c, nil
}
