package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/cloudra/internal/common"
	"github.com/dmitrijs2005/cloudra/internal/dbx"
	"github.com/dmitrijs2005/cloudra/internal/server/auth"
	"github.com/dmitrijs2005/cloudra/internal/server/config"
	"github.com/dmitrijs2005/cloudra/internal/server/mail"
	"github.com/dmitrijs2005/cloudra/internal/server/models"
)

const (
	verificationTokenValidity = 24 * time.Hour
	resetTokenValidity        = 10 * time.Minute
	minPasswordLength         = 6
	userSearchLimit           = 5
)

type Registration struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

func (r Registration) validate() error {
	switch {
	case strings.TrimSpace(r.FirstName) == "":
		return fmt.Errorf("%w: firstName is required", common.ErrorValidation)
	case strings.TrimSpace(r.LastName) == "":
		return fmt.Errorf("%w: lastName is required", common.ErrorValidation)
	case !strings.Contains(r.Email, "@"):
		return fmt.Errorf("%w: a valid email is required", common.ErrorValidation)
	case len(r.Password) < minPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, minPasswordLength)
	}
	return nil
}

// Session is a successful login.
type Session struct {
	Token string
	User  *models.User
}

// UserService handles accounts: registration with email verification,
// login, password reset and user lookup for sharing.
type UserService struct {
	base
	mailer                      mail.Mailer
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	frontendURL                 string
}

func NewUserService(d Deps, cfg *config.Config, mailer mail.Mailer) *UserService {
	return &UserService{
		base:                        newBase(d, "users"),
		mailer:                      mailer,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		frontendURL:                 strings.TrimRight(cfg.FrontendURL, "/"),
	}
}

// Register creates an inactive user and mails an activation link. A mail
// failure is logged; the account is still created.
func (s *UserService) Register(ctx context.Context, r Registration) (*models.User, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(r.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	raw, hashed, err := auth.NewOneTimeToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	now := s.now()
	expires := now.Add(verificationTokenValidity)
	user := &models.User{
		ID:                       s.newID(),
		FirstName:                strings.TrimSpace(r.FirstName),
		LastName:                 strings.TrimSpace(r.LastName),
		Email:                    strings.ToLower(strings.TrimSpace(r.Email)),
		PasswordHash:             hash,
		VerificationToken:        &hashed,
		VerificationTokenExpires: &expires,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Users(tx)
		if _, err := repo.GetByEmail(ctx, user.Email); err == nil {
			return fmt.Errorf("email %s: %w", user.Email, common.ErrorAlreadyExists)
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return repo.Create(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	s.send(ctx, mail.Message{
		To:      user.Email,
		Subject: "Activate your account",
		Body:    fmt.Sprintf("Open %s/activate/%s to activate your account.", s.frontendURL, raw),
	})
	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Activate consumes a verification token.
func (s *UserService) Activate(ctx context.Context, token string) (*models.User, error) {
	var user *models.User
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Users(tx)
		u, err := repo.GetByVerificationToken(ctx, common.HashToken(token))
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return err
		}
		if u.VerificationTokenExpires == nil || !s.now().Before(*u.VerificationTokenExpires) {
			return common.ErrTokenExpired
		}
		u.IsActive = true
		u.VerificationToken = nil
		u.VerificationTokenExpires = nil
		u.UpdatedAt = s.now()
		if err := repo.Update(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	return user, err
}

// Login checks the credentials of an active user and issues an access
// token. Unknown emails, wrong passwords and inactive accounts are all
// reported as unauthorized.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.repos.Users(s.tx.Conn()).GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, err
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, common.ErrorUnauthorized
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: account is not activated", common.ErrorUnauthorized)
	}
	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return &Session{Token: token, User: user}, nil
}

func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.repos.Users(s.tx.Conn()).GetByID(ctx, userID)
}

// UserIDFromToken resolves a bearer token to the id of an existing user.
func (s *UserService) UserIDFromToken(ctx context.Context, token string) (string, error) {
	id, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		return "", err
	}
	if _, err := s.repos.Users(s.tx.Conn()).GetByID(ctx, id); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrInvalidToken
		}
		return "", err
	}
	return id, nil
}

// ForgotPassword mails a short-lived reset link. Unknown emails are
// reported as not found.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	repo := s.repos.Users(s.tx.Conn())
	user, err := repo.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}
	raw, hashed, err := auth.NewOneTimeToken()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	expires := s.now().Add(resetTokenValidity)
	user.ResetPasswordToken = &hashed
	user.ResetPasswordTokenExpires = &expires
	user.UpdatedAt = s.now()
	if err := repo.Update(ctx, user); err != nil {
		return err
	}

	s.send(ctx, mail.Message{
		To:      user.Email,
		Subject: "Password reset",
		Body:    fmt.Sprintf("Open %s/resetpassword/%s to choose a new password.", s.frontendURL, raw),
	})
	return nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *UserService) ResetPassword(ctx context.Context, token, password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrorValidation, minPasswordLength)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Users(tx)
		u, err := repo.GetByResetToken(ctx, common.HashToken(token))
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidToken
			}
			return err
		}
		if u.ResetPasswordTokenExpires == nil || !s.now().Before(*u.ResetPasswordTokenExpires) {
			return common.ErrTokenExpired
		}
		u.PasswordHash = hash
		u.ResetPasswordToken = nil
		u.ResetPasswordTokenExpires = nil
		u.UpdatedAt = s.now()
		return repo.Update(ctx, u)
	})
}

// Search finds other users by a case-insensitive email prefix.
func (s *UserService) Search(ctx context.Context, userID, emailPrefix string) ([]*models.User, error) {
	prefix := strings.TrimSpace(emailPrefix)
	if prefix == "" {
		return nil, fmt.Errorf("%w: email is required", common.ErrorValidation)
	}
	return s.repos.Users(s.tx.Conn()).SearchByEmailPrefix(ctx, prefix, userID, userSearchLimit)
}

func (s *UserService) send(ctx context.Context, msg mail.Message) {
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn(ctx, "mail delivery failed", "to", msg.To, "subject", msg.Subject, "error", err)
		s.metrics.BestEffortFailure("mail", 1)
	}
}
