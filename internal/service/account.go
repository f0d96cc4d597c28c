package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"rewardhub/internal/auth"
	"rewardhub/internal/metrics"
	"rewardhub/internal/model"
	"rewardhub/internal/pkg/lock"
	"rewardhub/internal/repository"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 32
	referralAttempts  = 10
)

// AccountService handles sign-up, sign-in and the referral engine.
type AccountService struct {
	runner     *Runner
	users      *repository.UserRepository
	settings   *repository.SettingsRepository
	ledger     *Ledger
	sessions   *auth.Sessions
	baseCoins  int64
	bcryptCost int
	metrics    *metrics.Metrics
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(
	runner *Runner,
	users *repository.UserRepository,
	settings *repository.SettingsRepository,
	ledger *Ledger,
	sessions *auth.Sessions,
	baseCoins int64,
	bcryptCost int,
	m *metrics.Metrics,
) *AccountService {
	return &AccountService{
		runner:     runner,
		users:      users,
		settings:   settings,
		ledger:     ledger,
		sessions:   sessions,
		baseCoins:  baseCoins,
		bcryptCost: bcryptCost,
		metrics:    m,
	}
}

// Registration is the sign-up input.
type Registration struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	ReferralCode string `json:"referralCode,omitempty"`
}

// SignIn is returned by Register and Login.
type SignIn struct {
	User    *model.User   `json:"user"`
	Session *auth.Session `json:"session"`
	// Referred is false when a supplied referral code did not resolve.
	Referred bool `json:"referred"`
}

func (r Registration) normalized() Registration {
	return Registration{
		Username:     strings.TrimSpace(r.Username),
		Email:        strings.ToLower(strings.TrimSpace(r.Email)),
		Password:     r.Password,
		ReferralCode: strings.ToLower(strings.TrimSpace(r.ReferralCode)),
	}
}

func (r Registration) validate() error {
	var fields []string
	if n := len([]rune(r.Username)); n < minUsernameLength || n > maxUsernameLength {
		fields = append(fields, "username")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil || r.Email == "" || utf8.RuneCountInString(r.Email) > model.MaxEmailLength {
		fields = append(fields, "email")
	}
	if len(r.Password) < auth.MinPasswordLength {
		fields = append(fields, "password")
	}
	if len(fields) > 0 {
		return invalid("invalid registration", fields...)
	}
	return nil
}

// referralBase is the lowercase alphanumeric part of username.
func referralBase(username string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(username) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "user"
	}
	return b.String()
}

func (s *AccountService) newReferralCode(ctx context.Context, username string) (string, error) {
	base := referralBase(username)
	for i := 0; i < referralAttempts; i++ {
		code := fmt.Sprintf("%s%d", base, rand.Intn(10000))
		exists, err := s.users.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free referral code for %q after %d attempts", base, referralAttempts)
}

// Register creates an account with the base balance. A referral code that
// resolves credits the new user with the referral reward, and bumps the
// referrer's count while paying the inviter reward. A code that does not
// resolve is ignored.
func (s *AccountService) Register(ctx context.Context, in Registration) (*SignIn, error) {
	in = in.normalized()
	if err := in.validate(); err != nil {
		return nil, err
	}

	var (
		hash     string
		code     string
		referrer *model.User
	)
	err := s.runner.Read(ctx, "account.register.prepare", func(ctx context.Context) error {
		if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
			return fmt.Errorf("email already registered: %w", ErrConflict)
		} else if !errors.Is(err, repository.ErrUserNotFound) {
			return err
		}

		if in.ReferralCode != "" {
			r, err := s.users.GetByReferralCode(ctx, in.ReferralCode)
			switch {
			case err == nil:
				referrer = r
			case errors.Is(err, repository.ErrUserNotFound):
				log.Info().Str("referral_code", in.ReferralCode).Msg("Referral code did not resolve")
			default:
				return err
			}
		}

		var err error
		if code, err = s.newReferralCode(ctx, in.Username); err != nil {
			return err
		}
		hash, err = auth.HashPassword(in.Password, s.bcryptCost)
		return err
	})
	if err != nil {
		return nil, err
	}

	userID := uuid.NewString()
	keys := []string{lock.UserKey(userID)}
	if referrer != nil {
		keys = append(keys, lock.UserKey(referrer.ID))
	}

	var (
		user     *model.User
		settings *model.Settings
		referred bool
	)
	err = s.runner.InTx(ctx, "account.register", keys, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		if settings, err = s.settings.WithTx(tx).Get(ctx); err != nil {
			return err
		}

		var referredBy *string
		if referrer != nil {
			if _, err := s.users.WithTx(tx).GetByIDForUpdate(ctx, referrer.ID); err == nil {
				referredBy = &referrer.ID
				referred = true
			} else if !errors.Is(err, repository.ErrUserNotFound) {
				return err
			}
		}

		user, err = s.users.WithTx(tx).Create(ctx, &model.User{
			ID:           userID,
			Username:     in.Username,
			Email:        in.Email,
			PasswordHash: hash,
			ReferralCode: code,
			ReferredBy:   referredBy,
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return fmt.Errorf("email or referral code already taken: %w", ErrConflict)
			}
			return err
		}

		if s.baseCoins > 0 {
			if user, err = s.ledger.creditTx(ctx, tx, userID, s.baseCoins, model.TxTypeInitial, "welcome bonus"); err != nil {
				return err
			}
		}
		if !referred {
			return nil
		}
		if settings.ReferralReward > 0 {
			if user, err = s.ledger.creditTx(ctx, tx, userID, settings.ReferralReward, model.TxTypeReferral, "referred by "+referrer.Username); err != nil {
				return err
			}
		}
		_, err = s.ledger.referralTx(ctx, tx, referrer.ID, settings.InviterReward, user.Username)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AuthEvent("register")
	if s.baseCoins > 0 {
		s.metrics.Credit(model.TxTypeInitial, s.baseCoins)
	}
	if referred {
		s.metrics.Credit(model.TxTypeReferral, settings.ReferralReward)
		s.metrics.Credit(model.TxTypeInviter, settings.InviterReward)
	}
	log.Info().
		Str("user_id", user.ID).
		Str("username", user.Username).
		Bool("referred", referred).
		Int64("coins", user.Coins).
		Msg("User registered")

	sess, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &SignIn{User: user, Session: sess, Referred: referred}, nil
}

func (s *AccountService) createSession(ctx context.Context, userID string) (*auth.Session, error) {
	var sess *auth.Session
	err := s.runner.Read(ctx, "account.session", func(ctx context.Context) error {
		var err error
		sess, err = s.sessions.Create(ctx, userID)
		return err
	})
	return sess, err
}

// Login checks credentials and opens a new session.
func (s *AccountService) Login(ctx context.Context, email, password string) (*SignIn, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, invalid("email and password are required", "email", "password")
	}

	var user *model.User
	err := s.runner.Read(ctx, "account.login", func(ctx context.Context) error {
		u, err := s.users.GetByEmail(ctx, email)
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrInvalidCredentials
		}
		if err != nil {
			return err
		}
		ok, err := auth.CheckPassword(u.PasswordHash, password)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidCredentials
		}
		user = u
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.metrics.AuthEvent("login_failed")
		}
		return nil, err
	}

	sess, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	s.metrics.AuthEvent("login")
	log.Info().Str("user_id", user.ID).Msg("User signed in")
	return &SignIn{User: user, Session: sess}, nil
}

// Logout revokes the session behind token.
func (s *AccountService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return ErrUnauthenticated
	}
	return s.runner.Read(ctx, "account.logout", func(ctx context.Context) error {
		userID, err := s.sessions.Revoke(ctx, token)
		if errors.Is(err, auth.ErrInvalidToken) {
			return ErrUnauthenticated
		}
		if err != nil {
			return err
		}
		s.metrics.AuthEvent("logout")
		log.Info().Str("user_id", userID).Msg("User signed out")
		return nil
	})
}

// Authenticate resolves a session token to its user.
func (s *AccountService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	var user *model.User
	err := s.runner.Read(ctx, "account.authenticate", func(ctx context.Context) error {
		userID, err := s.sessions.Validate(ctx, token)
		if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrSessionRevoked) {
			return ErrUnauthenticated
		}
		if err != nil {
			return err
		}
		user, err = s.users.GetByID(ctx, userID)
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrUnauthenticated
		}
		return err
	})
	return user, err
}

// GetUser returns a fresh copy of the user.
func (s *AccountService) GetUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := checkID("user", userID); err != nil {
		return nil, err
	}
	var user *model.User
	err := s.runner.Read(ctx, "account.get", func(ctx context.Context) error {
		var err error
		user, err = s.users.GetByID(ctx, userID)
		return fromRepo(err)
	})
	return user, err
}

// Promote grants the admin flag to the user with email.
func (s *AccountService) Promote(ctx context.Context, email string) error {
	return s.runner.Read(ctx, "account.promote", func(ctx context.Context) error {
		if err := s.users.SetAdmin(ctx, strings.TrimSpace(email), true); err != nil {
			return fromRepo(err)
		}
		log.Info().Str("email", email).Msg("User promoted to admin")
		return nil
	})
}

// MeetsWithdrawalRequirements reports whether user has enough referrals.
func MeetsWithdrawalRequirements(user *model.User, settings *model.Settings) bool {
	return user.ReferralCount >= settings.MinReferralsForWithdrawal
}

// Eligibility is the referral progress of a user.
type Eligibility struct {
	Eligible          bool `json:"eligible"`
	ReferralCount     int  `json:"referralCount"`
	RequiredReferrals int  `json:"requiredReferrals"`
}

// Eligibility evaluates the withdrawal requirement against current
// settings and the user's current referral count.
func (s *AccountService) Eligibility(ctx context.Context, userID string) (*Eligibility, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	var out *Eligibility
	err := s.runner.Read(ctx, "account.eligibility", func(ctx context.Context) error {
		user, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return fromRepo(err)
		}
		settings, err := s.settings.Get(ctx)
		if err != nil {
			return err
		}
		out = &Eligibility{
			Eligible:          MeetsWithdrawalRequirements(user, settings),
			ReferralCount:     user.ReferralCount,
			RequiredReferrals: settings.MinReferralsForWithdrawal,
		}
		return nil
	})
	return out, err
}
