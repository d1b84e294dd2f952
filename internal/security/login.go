package security

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"udb/internal/domain"
)

// Profile is what the external directory reports about an account.
type Profile struct {
	Username string
	Fullname string
	Email    string
	Role     string
}

// Directory is the LDAP collaborator contract. Implementations bind
// with the supplied credentials and map group membership to a role.
type Directory interface {
	Enabled() bool
	Authenticate(ctx context.Context, username, password string) (*Profile, error)
}

// Authenticator validates credentials against the local store first,
// then the directory. Directory-only accounts are created locally on
// first login with an empty password.
type Authenticator struct {
	db        *gorm.DB
	directory Directory
}

func NewAuthenticator(db *gorm.DB, directory Directory) *Authenticator {
	return &Authenticator{db: db, directory: directory}
}

// Login verifies a username/password pair and returns the local user.
// domain.ErrUnauthorized covers every failure mode so callers cannot
// leak which half rejected the attempt.
func (a *Authenticator) Login(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.ErrUnauthorized
	}

	var user domain.User
	err := a.db.WithContext(ctx).
		Where("lower(username) = lower(?) AND status <> ?", username, domain.StatusDeleted).
		First(&user).Error
	switch {
	case err == nil:
		if user.Status == domain.StatusDisabled {
			return nil, domain.ErrUnauthorized
		}
		if user.Password != "" {
			if CheckPassword(password, user.Password) {
				return &user, nil
			}
			return nil, domain.ErrUnauthorized
		}
		// Directory-backed account: re-bind on every login.
		return a.directoryLogin(ctx, username, password, &user)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return a.directoryLogin(ctx, username, password, nil)
	default:
		return nil, err
	}
}

func (a *Authenticator) directoryLogin(ctx context.Context, username, password string, existing *domain.User) (*domain.User, error) {
	if a.directory == nil || !a.directory.Enabled() {
		return nil, domain.ErrUnauthorized
	}
	profile, err := a.directory.Authenticate(ctx, username, password)
	if err != nil {
		log.Debug("directory bind failed", "username", username, "error", err)
		return nil, domain.ErrUnauthorized
	}
	if existing != nil {
		return existing, nil
	}

	user := domain.User{
		Username: profile.Username,
		Fullname: profile.Fullname,
		Email:    profile.Email,
		Role:     profile.Role,
	}
	user.Status = domain.StatusEnabled
	user.Summary = user.DisplayName()
	if user.Role == "" {
		user.Role = domain.RoleGuest
	}
	if err := a.db.WithContext(ctx).Create(&user).Error; err != nil {
		log.Warn("failed to create directory user", "username", username, "error", err)
		return nil, domain.ErrUnauthorized
	}
	log.Info("created directory-backed user", "username", user.Username, "role", user.Role)
	return &user, nil
}
