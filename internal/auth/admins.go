// Package auth authenticates back-office admins and guards admin routes.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"printshop/internal/apperr"
	"printshop/internal/docstore"
)

const adminsCollection = "adminUsers"

// ErrInvalidCredentials covers unknown email, wrong password and disabled accounts alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AdminUser is a back-office account.
type AdminUser struct {
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Settings configures token issuing.
type Settings struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
}

// Service manages admin accounts and logins.
type Service struct {
	store    docstore.Store
	settings Settings
	now      func() time.Time
	log      *zap.Logger
}

func NewService(store docstore.Store, settings Settings, log *zap.Logger) *Service {
	if settings.AccessTTL <= 0 {
		settings.AccessTTL = 8 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, settings: settings, now: time.Now, log: log.With(zap.String("component", "auth"))}
}

type newAdmin struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,oneof=admin editor"`
}

// AddAdmin creates an active account. The email is stored lowercased.
func (s *Service) AddAdmin(ctx context.Context, email, password, role string) (AdminUser, error) {
	in := newAdmin{Email: normalizeEmail(email), Password: password, Role: role}
	if in.Role == "" {
		in.Role = "admin"
	}
	if err := apperr.Validate(in); err != nil {
		return AdminUser{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return AdminUser{}, fmt.Errorf("hash password: %w", err)
	}
	u := AdminUser{Email: in.Email, PasswordHash: string(hash), Role: in.Role, Active: true, CreatedAt: s.now().UTC()}
	if err := s.store.Create(ctx, adminsCollection, u.Email, u); err != nil {
		return AdminUser{}, apperr.FromWrite("admin "+u.Email, err)
	}
	s.log.Info("admin added", zap.String("email", u.Email), zap.String("role", u.Role))
	return u, nil
}

// SetActive enables or disables an account.
func (s *Service) SetActive(ctx context.Context, email string, active bool) error {
	email = normalizeEmail(email)
	if err := s.store.Update(ctx, adminsCollection, email, map[string]any{"active": active}); err != nil {
		return apperr.FromWrite("admin "+email, err)
	}
	return nil
}

// ListAdmins returns every account.
func (s *Service) ListAdmins(ctx context.Context) ([]AdminUser, error) {
	users, err := docstore.ListAs[AdminUser](ctx, s.store, adminsCollection)
	if err != nil {
		return nil, apperr.FromRead(adminsCollection, err)
	}
	return users, nil
}

// dummyHash keeps the cost of a failed lookup close to a real comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.MinCost)

// Login checks credentials and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	email = normalizeEmail(email)
	u, err := docstore.GetAs[AdminUser](ctx, s.store, adminsCollection, email)
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return Token{}, ErrInvalidCredentials
	case err != nil:
		return Token{}, apperr.FromRead("admin", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil || !u.Active {
		s.log.Warn("admin login rejected", zap.String("email", email), zap.Bool("active", u.Active))
		return Token{}, ErrInvalidCredentials
	}
	tok, err := Issue(u.Email, u.Role, s.settings.Issuer, s.settings.SigningKey, s.settings.AccessTTL, s.now())
	if err != nil {
		return Token{}, fmt.Errorf("issue token: %w", err)
	}
	s.log.Info("admin logged in", zap.String("email", email))
	return tok, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
