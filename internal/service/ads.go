package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"rewardhub/internal/metrics"
	"rewardhub/internal/model"
	"rewardhub/internal/pkg/lock"
	"rewardhub/internal/repository"
)

// AdService pays users for watching popup ads.
type AdService struct {
	runner  *Runner
	ads     *repository.AdRepository
	ledger  *Ledger
	metrics *metrics.Metrics
}

// NewAdService creates a new AdService instance.
func NewAdService(runner *Runner, ads *repository.AdRepository, ledger *Ledger, m *metrics.Metrics) *AdService {
	return &AdService{runner: runner, ads: ads, ledger: ledger, metrics: m}
}

// AdInput is the editable part of an ad.
type AdInput struct {
	HTMLContent     string `json:"htmlContent"`
	DurationSeconds int    `json:"durationSeconds"`
	CoinReward      int64  `json:"coinReward"`
	Active          *bool  `json:"active,omitempty"`
}

// ClaimResult is returned by a successful claim.
type ClaimResult struct {
	View       *model.AdView `json:"view"`
	Reward     int64         `json:"reward"`
	NewBalance int64         `json:"newBalance"`
}

// ListActive returns the ads currently shown to users.
func (s *AdService) ListActive(ctx context.Context) ([]*model.PopupAd, error) {
	var out []*model.PopupAd
	err := s.runner.Read(ctx, "ads.list", func(ctx context.Context) error {
		var err error
		out, err = s.ads.ListActive(ctx)
		return err
	})
	return out, err
}

// StartView records that the user opened an active ad at now.
func (s *AdService) StartView(ctx context.Context, userID, adID string, now time.Time) (*model.AdView, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := checkID("ad", adID); err != nil {
		return nil, err
	}

	var view *model.AdView
	err := s.runner.Read(ctx, "ads.start_view", func(ctx context.Context) error {
		ad, err := s.ads.GetByID(ctx, adID)
		if err != nil {
			return fromRepo(err)
		}
		if !ad.Active {
			return ErrNotAvailable
		}
		view, err = s.ads.CreateView(ctx, uuid.NewString(), userID, adID, now)
		return err
	})
	return view, err
}

// ClaimView credits the ad reward once the ad has been shown for its full
// duration. A view pays at most once.
func (s *AdService) ClaimView(ctx context.Context, userID, viewID string, now time.Time) (*ClaimResult, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if err := checkID("ad view", viewID); err != nil {
		return nil, err
	}

	var result *ClaimResult
	keys := []string{lock.UserKey(userID), lock.AdViewKey(viewID)}
	err := s.runner.InTx(ctx, "ads.claim_view", keys, func(ctx context.Context, tx pgx.Tx) error {
		ads := s.ads.WithTx(tx)

		view, err := ads.GetViewForUpdate(ctx, viewID)
		if err != nil {
			return fromRepo(err)
		}
		if view.UserID != userID {
			return &NotFoundError{What: "ad view"}
		}
		if view.ClaimedAt != nil {
			return ErrNotAvailable
		}

		ad, err := ads.GetByID(ctx, view.AdID)
		if err != nil {
			return fromRepo(err)
		}
		if now.Sub(view.StartedAt) < time.Duration(ad.DurationSeconds)*time.Second {
			return ErrNotAvailable
		}

		if err := ads.MarkClaimed(ctx, viewID, now); err != nil {
			if errors.Is(err, repository.ErrAdViewNotFound) {
				return ErrNotAvailable
			}
			return err
		}
		user, err := s.ledger.creditTx(ctx, tx, userID, ad.CoinReward, model.TxTypeAd, "ad view")
		if err != nil {
			return err
		}

		view.ClaimedAt = &now
		result = &ClaimResult{View: view, Reward: ad.CoinReward, NewBalance: user.Coins}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Credit(model.TxTypeAd, result.Reward)
	log.Info().
		Str("user_id", userID).
		Str("view_id", viewID).
		Int64("reward", result.Reward).
		Msg("Ad reward claimed")
	return result, nil
}

// CreateAd adds a popup ad.
func (s *AdService) CreateAd(ctx context.Context, actor model.Actor, in AdInput) (*model.PopupAd, error) {
	if !actor.IsAdmin {
		return nil, ErrForbidden
	}

	ad := &model.PopupAd{
		ID:              uuid.NewString(),
		HTMLContent:     strings.TrimSpace(in.HTMLContent),
		DurationSeconds: in.DurationSeconds,
		CoinReward:      in.CoinReward,
		Active:          in.Active == nil || *in.Active,
	}
	var fields []string
	if ad.HTMLContent == "" {
		fields = append(fields, "htmlContent")
	}
	if ad.DurationSeconds < 0 {
		fields = append(fields, "durationSeconds")
	}
	if ad.CoinReward <= 0 {
		fields = append(fields, "coinReward")
	}
	if len(fields) > 0 {
		return nil, invalid("invalid ad", fields...)
	}

	var out *model.PopupAd
	err := s.runner.Read(ctx, "ads.create", func(ctx context.Context) error {
		var err error
		out, err = s.ads.Create(ctx, ad)
		return err
	})
	return out, err
}

// SetAdActive shows or hides an ad.
func (s *AdService) SetAdActive(ctx context.Context, actor model.Actor, id string, active bool) error {
	if !actor.IsAdmin {
		return ErrForbidden
	}
	if err := checkID("ad", id); err != nil {
		return err
	}
	return s.runner.Read(ctx, "ads.set_active", func(ctx context.Context) error {
		return fromRepo(s.ads.SetActive(ctx, id, active))
	})
}
