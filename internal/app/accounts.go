package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"stayfinder/internal/domain"
)

// ProfileUpdate carries optional edits; nil fields are kept as they are.
type ProfileUpdate struct {
	FirstName   *string
	Username    *string
	NewPassword *string
}

type AccountService struct {
	users   domain.UserRepository
	history domain.HistoryRepository // optional
	cost    int
}

func NewAccountService(users domain.UserRepository, history domain.HistoryRepository) *AccountService {
	return &AccountService{users: users, history: history, cost: bcrypt.DefaultCost}
}

// WithHashCost lowers the bcrypt cost, mostly for tests.
func (s *AccountService) WithHashCost(cost int) *AccountService {
	s.cost = cost
	return s
}

func normalizeUsername(u string) string { return strings.ToLower(strings.TrimSpace(u)) }

// ValidatePassword enforces the password rules: at least 8 characters with
// upper, lower, digit and special characters, and no embedded username.
func ValidatePassword(pw, username string) error {
	if len([]rune(pw)) < 8 {
		return fmt.Errorf("password must be at least 8 characters: %w", domain.ErrInvalidInput)
	}
	if u := normalizeUsername(username); u != "" && strings.Contains(strings.ToLower(pw), u) {
		return fmt.Errorf("password must not contain the username: %w", domain.ErrInvalidInput)
	}
	var upper, lower, digit, special bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			special = true
		}
	}
	if !(upper && lower && digit && special) {
		return fmt.Errorf("password needs upper and lower case letters, a digit and a special character: %w", domain.ErrInvalidInput)
	}
	return nil
}

func (s *AccountService) SignUp(ctx context.Context, username, firstName, password string) (domain.User, error) {
	username = normalizeUsername(username)
	if username == "" {
		return domain.User{}, fmt.Errorf("username is required: %w", domain.ErrInvalidInput)
	}
	if err := ValidatePassword(password, username); err != nil {
		return domain.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	u := domain.User{
		Username:     username,
		FirstName:    strings.TrimSpace(firstName),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// SignIn returns ErrInvalidCredentials for both unknown users and wrong
// passwords.
func (s *AccountService) SignIn(ctx context.Context, username, password string) (domain.User, error) {
	u, err := s.users.GetUser(ctx, normalizeUsername(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, domain.ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return u, nil
}

// UpdateProfile applies the edits after checking the current password.
// Renaming onto an existing username fails with ErrConflict.
func (s *AccountService) UpdateProfile(ctx context.Context, username, currentPassword string, upd ProfileUpdate) (domain.User, error) {
	u, err := s.SignIn(ctx, username, currentPassword)
	if err != nil {
		return domain.User{}, err
	}
	old := u.Username

	if upd.FirstName != nil {
		u.FirstName = strings.TrimSpace(*upd.FirstName)
	}
	if upd.Username != nil {
		next := normalizeUsername(*upd.Username)
		if next == "" {
			return domain.User{}, fmt.Errorf("username is required: %w", domain.ErrInvalidInput)
		}
		if next != old {
			if _, err := s.users.GetUser(ctx, next); err == nil {
				return domain.User{}, fmt.Errorf("username %q: %w", next, domain.ErrConflict)
			} else if !errors.Is(err, domain.ErrNotFound) {
				return domain.User{}, err
			}
			u.Username = next
		}
	}
	if upd.NewPassword != nil {
		if err := ValidatePassword(*upd.NewPassword, u.Username); err != nil {
			return domain.User{}, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*upd.NewPassword), s.cost)
		if err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
		u.PasswordHash = string(hash)
	}

	if err := s.users.UpdateUser(ctx, old, u); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (s *AccountService) Delete(ctx context.Context, username, password string) error {
	u, err := s.SignIn(ctx, username, password)
	if err != nil {
		return err
	}
	return s.users.DeleteUser(ctx, u.Username)
}

// LatestRun returns the most recent stored recommendation run of a user.
func (s *AccountService) LatestRun(ctx context.Context, username string) (domain.RecommendationRun, error) {
	if s.history == nil {
		return domain.RecommendationRun{}, domain.ErrNotFound
	}
	return s.history.LatestRun(ctx, normalizeUsername(username))
}
