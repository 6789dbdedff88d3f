// Package certificate manages certificate records and public verification.
package certificate

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"

	"printshop/internal/apperr"
	"printshop/internal/docstore"
	"printshop/internal/idgen"
	"printshop/internal/metrics"
)

// Options configures a Service. Zero values fall back to UTC, time.Now and a
// five second lookup timeout.
type Options struct {
	Courses       []string
	Location      *time.Location
	Now           func() time.Time
	LookupTimeout time.Duration
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
}

// Service coordinates certificate writes and verification.
type Service struct {
	repo    *Repository
	ids     *idgen.Generator
	courses []string
	loc     *time.Location
	now     func() time.Time
	timeout time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewService creates a service backed by a repository and an id generator.
func NewService(repo *Repository, ids *idgen.Generator, opts Options) *Service {
	s := &Service{
		repo:    repo,
		ids:     ids,
		courses: opts.Courses,
		loc:     opts.Location,
		now:     opts.Now,
		timeout: opts.LookupTimeout,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.With(zap.String("component", "certificate"))
	return s
}

// Courses lists the accepted course names.
func (s *Service) Courses() []string { return slices.Clone(s.courses) }

// Today is the current calendar date in the configured time zone.
func (s *Service) Today() civil.Date {
	return civil.DateOf(s.now().In(s.loc))
}

// Normalize trims whitespace and uppercases an id.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Verify resolves a user-supplied id. An unknown id yields an invalid result
// and no error; an unreachable store yields apperr.ErrLookupFailed.
func (s *Service) Verify(ctx context.Context, raw string) (Result, error) {
	id := Normalize(raw)
	if id == "" {
		return Result{}, apperr.Invalid("id", "is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cert, err := s.repo.Get(ctx, id)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		s.metrics.Verification("not_found")
		return NotFoundResult(id), nil
	case err != nil:
		s.metrics.Verification("error")
		s.log.Warn("certificate lookup failed", zap.String("id", id), zap.Error(err))
		return Result{}, fmt.Errorf("%w: %s: %w", apperr.ErrLookupFailed, id, err)
	}

	res := ResultFor(cert, s.Today())
	s.metrics.Verification(string(res.Status))
	return res, nil
}

// Input is the admin form for a new certificate.
type Input struct {
	CandidateName    string      `json:"candidateName" validate:"required"`
	Course           string      `json:"courseOrWorkshop" validate:"required"`
	IssueDate        civil.Date  `json:"issueDate"`
	CompletionDate   civil.Date  `json:"completionDate"`
	ExpiryDate       *civil.Date `json:"expiryDate"`
	Lifetime         bool        `json:"lifetime"`
	PerformanceScore int         `json:"performanceScore" validate:"gte=0,lte=100"`
}

// Create validates input, assigns the next certificate id and stores the record.
func (s *Service) Create(ctx context.Context, in Input) (Certificate, error) {
	in.CandidateName = strings.TrimSpace(in.CandidateName)
	in.Course = strings.TrimSpace(in.Course)
	if err := apperr.Validate(in); err != nil {
		return Certificate{}, err
	}
	now := s.now().UTC()
	cert := Certificate{
		CandidateName:    in.CandidateName,
		Course:           in.Course,
		IssueDate:        in.IssueDate,
		CompletionDate:   in.CompletionDate,
		ExpiryDate:       in.ExpiryDate,
		Lifetime:         in.Lifetime,
		PerformanceScore: in.PerformanceScore,
		Status:           StatusValid,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.check(&cert); err != nil {
		return Certificate{}, err
	}

	id, err := s.ids.Assign(ctx, idgen.Certificate, func(id string) error {
		cert.ID = id
		return s.repo.Insert(ctx, cert)
	})
	switch {
	case errors.Is(err, idgen.ErrStorageUnavailable):
		return Certificate{}, fmt.Errorf("%w: %w", apperr.ErrStorageUnavailable, err)
	case errors.Is(err, docstore.ErrExists):
		return Certificate{}, fmt.Errorf("%w: certificate %s already exists", apperr.ErrConflict, cert.ID)
	case err != nil:
		return Certificate{}, fmt.Errorf("%w: insert certificate: %w", apperr.ErrStorageUnavailable, err)
	}
	s.log.Info("certificate created", zap.String("id", id), zap.String("course", cert.Course))
	return cert, nil
}

// check enforces the record invariants shared by create and edit. A lifetime
// certificate never keeps an expiry date.
func (s *Service) check(c *Certificate) error {
	if len(s.courses) > 0 && !slices.Contains(s.courses, c.Course) {
		return apperr.Invalid("courseOrWorkshop", "must be one of: %s", strings.Join(s.courses, ", "))
	}
	if !c.IssueDate.IsValid() {
		return apperr.Invalid("issueDate", "is required")
	}
	if !c.CompletionDate.IsValid() {
		return apperr.Invalid("completionDate", "is required")
	}
	if c.PerformanceScore < 0 || c.PerformanceScore > 100 {
		return apperr.Invalid("performanceScore", "must be between 0 and 100")
	}
	if c.Status != StatusValid && c.Status != StatusInvalid {
		return apperr.Invalid("status", "must be valid or invalid")
	}
	if c.Lifetime {
		c.ExpiryDate = nil
		return nil
	}
	if c.ExpiryDate == nil || !c.ExpiryDate.IsValid() {
		return apperr.Invalid("expiryDate", "is required unless lifetime is set")
	}
	return nil
}

// Get returns a stored certificate by id.
func (s *Service) Get(ctx context.Context, rawID string) (View, error) {
	id := Normalize(rawID)
	cert, err := s.repo.Get(ctx, id)
	if err != nil {
		return View{}, s.readErr(id, err)
	}
	return viewOf(cert, s.Today()), nil
}

// List returns every certificate in creation order.
func (s *Service) List(ctx context.Context) ([]View, error) {
	certs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list certificates: %w", apperr.ErrLookupFailed, err)
	}
	return s.views(certs), nil
}

func (s *Service) views(certs []Certificate) []View {
	today := s.Today()
	out := make([]View, 0, len(certs))
	for _, c := range certs {
		out = append(out, viewOf(c, today))
	}
	return out
}

// Patch holds the fields an admin edit may change. Nil means unchanged.
type Patch struct {
	CandidateName    *string     `json:"candidateName"`
	Course           *string     `json:"courseOrWorkshop"`
	IssueDate        *civil.Date `json:"issueDate"`
	CompletionDate   *civil.Date `json:"completionDate"`
	ExpiryDate       *civil.Date `json:"expiryDate"`
	Lifetime         *bool       `json:"lifetime"`
	PerformanceScore *int        `json:"performanceScore"`
	Status           *Status     `json:"status"`
}

// Update applies a partial edit and re-checks the record invariants before
// writing.
func (s *Service) Update(ctx context.Context, rawID string, p Patch) (View, error) {
	id := Normalize(rawID)
	cert, err := s.repo.Get(ctx, id)
	if err != nil {
		return View{}, s.readErr(id, err)
	}

	fields := map[string]any{}
	if p.CandidateName != nil {
		name := strings.TrimSpace(*p.CandidateName)
		if name == "" {
			return View{}, apperr.Invalid("candidateName", "is required")
		}
		cert.CandidateName = name
		fields["candidateName"] = name
	}
	if p.Course != nil {
		cert.Course = strings.TrimSpace(*p.Course)
		fields["courseOrWorkshop"] = cert.Course
	}
	if p.IssueDate != nil {
		cert.IssueDate = *p.IssueDate
		fields["issueDate"] = cert.IssueDate
	}
	if p.CompletionDate != nil {
		cert.CompletionDate = *p.CompletionDate
		fields["completionDate"] = cert.CompletionDate
	}
	if p.ExpiryDate != nil {
		d := *p.ExpiryDate
		cert.ExpiryDate = &d
	}
	if p.Lifetime != nil {
		cert.Lifetime = *p.Lifetime
	}
	if p.PerformanceScore != nil {
		cert.PerformanceScore = *p.PerformanceScore
		fields["performanceScore"] = cert.PerformanceScore
	}
	if p.Status != nil {
		cert.Status = *p.Status
		fields["status"] = cert.Status
	}
	if err := s.check(&cert); err != nil {
		return View{}, err
	}
	if p.ExpiryDate != nil || p.Lifetime != nil {
		// lifetime and expiryDate are always written as a pair.
		fields["lifetime"] = cert.Lifetime
		fields["expiryDate"] = cert.ExpiryDate
	}
	cert.UpdatedAt = s.now().UTC()
	fields["updatedAt"] = cert.UpdatedAt

	if err := s.repo.Update(ctx, id, fields); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return View{}, fmt.Errorf("%w: certificate %s", apperr.ErrNotFound, id)
		}
		return View{}, fmt.Errorf("%w: update certificate: %w", apperr.ErrStorageUnavailable, err)
	}
	s.log.Info("certificate updated", zap.String("id", id))
	return viewOf(cert, s.Today()), nil
}

// Delete removes a certificate.
func (s *Service) Delete(ctx context.Context, rawID string) error {
	id := Normalize(rawID)
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("%w: certificate %s", apperr.ErrNotFound, id)
		}
		return fmt.Errorf("%w: delete certificate: %w", apperr.ErrStorageUnavailable, err)
	}
	s.log.Info("certificate deleted", zap.String("id", id))
	return nil
}

// Expiring lists certificates that are Expiring Soon or Expired, soonest first.
func (s *Service) Expiring(ctx context.Context) ([]View, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := []View{}
	for _, v := range all {
		if v.ExpiryStatus == ExpiringSoon || v.ExpiryStatus == ExpiryExpired {
			out = append(out, v)
		}
	}
	slices.SortStableFunc(out, func(a, b View) int {
		return *a.DaysLeft - *b.DaysLeft
	})
	return out, nil
}

// Stats summarises the certificate collection.
type Stats struct {
	Total        int `json:"total"`
	Valid        int `json:"valid"`
	Lifetime     int `json:"lifetime"`
	Active       int `json:"active"`
	ExpiringSoon int `json:"expiringSoon"`
	Expired      int `json:"expired"`
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	all, err := s.List(ctx)
	if err != nil {
		return Stats{}, err
	}
	var st Stats
	for _, v := range all {
		st.Total++
		if v.Status == StatusValid {
			st.Valid++
		}
		switch v.ExpiryStatus {
		case ExpiryLifetime:
			st.Lifetime++
		case ExpiryActive:
			st.Active++
		case ExpiringSoon:
			st.ExpiringSoon++
		case ExpiryExpired:
			st.Expired++
		}
	}
	return st, nil
}

// Feed is one live snapshot of the collection as admin views.
type Feed struct {
	Certificates []View
	Err          error
}

// Subscribe streams the full certificate list after every change until ctx
// is cancelled.
func (s *Service) Subscribe(ctx context.Context) (<-chan Feed, error) {
	snaps, err := s.repo.Watch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe: %w", apperr.ErrLookupFailed, err)
	}
	out := make(chan Feed)
	go func() {
		defer close(out)
		for snap := range snaps {
			u := Feed{Err: snap.Err}
			if snap.Err == nil {
				u.Certificates = s.views(snap.Certificates)
			}
			select {
			case out <- u:
			case <-ctx.Done():
				for range snaps {
				}
				return
			}
		}
	}()
	return out, nil
}

func (s *Service) readErr(id string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: certificate %s", apperr.ErrNotFound, id)
	}
	return fmt.Errorf("%w: certificate %s: %w", apperr.ErrLookupFailed, id, err)
}
