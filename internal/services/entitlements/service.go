package entitlements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	pgrepo "github.com/ivankudzin/fitmatch/internal/repo/postgres"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrWalletStoreNil  = errors.New("wallet store is nil")
	ErrPremiumStoreNil = errors.New("entitlement store is nil")
)

type PremiumStore interface {
	Get(ctx context.Context, userID int64) (pgrepo.EntitlementRecord, error)
	ExtendPremium(ctx context.Context, userID int64, period time.Duration, now time.Time) (time.Time, error)
}

type WalletStore interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	Debit(ctx context.Context, userID, amount int64, reason string) (bool, error)
	Credit(ctx context.Context, userID, amount int64, reason string) (int64, error)
}

type Config struct {
	// DefaultPremium applies to users without an entitlement row.
	DefaultPremium bool
}

type Service struct {
	premium PremiumStore
	wallets WalletStore
	cfg     Config
	now     func() time.Time
	logger  *zap.Logger
}

type Snapshot struct {
	UserID       int64      `json:"user_id"`
	Premium      bool       `json:"premium"`
	PremiumUntil *time.Time `json:"premium_until,omitempty"`
	Balance      int64      `json:"balance"`
}

func NewService(premium PremiumStore, wallets WalletStore, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		premium: premium,
		wallets: wallets,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
	}
}

func (s *Service) IsPremium(ctx context.Context, userID int64) (bool, error) {
	if userID <= 0 {
		return false, ErrValidation
	}
	if s.premium == nil {
		return false, ErrPremiumStoreNil
	}

	rec, err := s.premium.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if rec.PremiumExpiresAt == nil {
		return s.cfg.DefaultPremium, nil
	}
	return rec.PremiumExpiresAt.After(s.now().UTC()), nil
}

func (s *Service) Balance(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, ErrValidation
	}
	if s.wallets == nil {
		return 0, ErrWalletStoreNil
	}
	return s.wallets.Balance(ctx, userID)
}

// Debit is attempted exactly once. The caller decides what a refusal means.
func (s *Service) Debit(ctx context.Context, userID, amount int64, reason string) (bool, error) {
	if userID <= 0 || amount <= 0 {
		return false, ErrValidation
	}
	if s.wallets == nil {
		return false, ErrWalletStoreNil
	}

	reason = strings.TrimSpace(reason)
	ok, err := s.wallets.Debit(ctx, userID, amount, reason)
	if err != nil {
		return false, fmt.Errorf("debit %d for %s: %w", amount, reason, err)
	}
	if !ok {
		s.logger.Info("wallet debit refused",
			zap.Int64("user_id", userID),
			zap.Int64("amount", amount),
			zap.String("reason", reason),
		)
	}
	return ok, nil
}

func (s *Service) Credit(ctx context.Context, userID, amount int64, reason string) (int64, error) {
	if userID <= 0 || amount <= 0 {
		return 0, ErrValidation
	}
	if s.wallets == nil {
		return 0, ErrWalletStoreNil
	}
	return s.wallets.Credit(ctx, userID, amount, strings.TrimSpace(reason))
}

func (s *Service) GrantPremium(ctx context.Context, userID int64, period time.Duration) (time.Time, error) {
	if userID <= 0 || period <= 0 {
		return time.Time{}, ErrValidation
	}
	if s.premium == nil {
		return time.Time{}, ErrPremiumStoreNil
	}
	return s.premium.ExtendPremium(ctx, userID, period, s.now().UTC())
}

func (s *Service) Get(ctx context.Context, userID int64) (Snapshot, error) {
	if userID <= 0 {
		return Snapshot{}, ErrValidation
	}
	if s.premium == nil {
		return Snapshot{}, ErrPremiumStoreNil
	}

	rec, err := s.premium.Get(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	premium := s.cfg.DefaultPremium
	if rec.PremiumExpiresAt != nil {
		premium = rec.PremiumExpiresAt.After(s.now().UTC())
	}

	return Snapshot{
		UserID:       userID,
		Premium:      premium,
		PremiumUntil: rec.PremiumExpiresAt,
		Balance:      balance,
	}, nil
}

// Account binds the service to one user so a discovery session can use it as
// its wallet and entitlement source.
type Account struct {
	svc    *Service
	userID int64
}

func (s *Service) ForUser(userID int64) *Account {
	return &Account{svc: s, userID: userID}
}

func (a *Account) Balance(ctx context.Context) (int64, error) {
	return a.svc.Balance(ctx, a.userID)
}

func (a *Account) Debit(ctx context.Context, amount int64, reason string) (bool, error) {
	return a.svc.Debit(ctx, a.userID, amount, reason)
}

func (a *Account) Credit(ctx context.Context, amount int64, reason string) error {
	_, err := a.svc.Credit(ctx, a.userID, amount, reason)
	return err
}

func (a *Account) IsPremium(ctx context.Context) (bool, error) {
	return a.svc.IsPremium(ctx, a.userID)
}
