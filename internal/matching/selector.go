// Package matching decides when and how to form dining groups from the
// searching pool, and commits them.
//
// A request runs an ordered cascade of tiers (perfect, expanded, guaranteed).
// The first satisfiable tier wins. Sweep forms full groups across the whole
// pool for users who stopped retrying.
//
// Selection is pure computation over a fresh pool snapshot; the only
// serialization point is the store transaction in Finalizer.Finalize, so
// concurrent requests may pick overlapping members and the loser simply
// stays searching.
package matching

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/mmynk/tablemates/internal/models"
	"github.com/mmynk/tablemates/internal/pool"
	"github.com/mmynk/tablemates/internal/scoring"
	"github.com/mmynk/tablemates/internal/storage"
)

// ErrNoSector is returned when the requester has not set a sector.
var ErrNoSector = errors.New("user has no sector")

// Status is the outcome of a match request.
type Status string

const (
	StatusSearching      Status = "searching"
	StatusMatched        Status = "matched"
	StatusAlreadyInGroup Status = "already_in_group"
)

// Result describes what RequestMatch did.
type Result struct {
	Status  Status
	GroupID string
	Tier    models.MatchTier
}

// Selector runs the tier cascade for one requester at a time.
// It holds no shared mutable state and is safe for concurrent use.
type Selector struct {
	store     storage.Store
	pool      *pool.Pool
	scorer    *scoring.Scorer
	finalizer *Finalizer
	policy    Policy
	opts      options
}

// NewSelector creates a selector. The policy must be valid.
func NewSelector(store storage.Store, p *pool.Pool, scorer *scoring.Scorer, finalizer *Finalizer, policy Policy, opts ...Option) (*Selector, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	return &Selector{
		store:     store,
		pool:      p,
		scorer:    scorer,
		finalizer: finalizer,
		policy:    policy,
		opts:      applyOptions(opts),
	}, nil
}

// RequestMatch puts uid in the pool if needed and tries to form a group.
func (s *Selector) RequestMatch(ctx context.Context, uid string) (Result, error) {
	start := time.Now()
	res, err := s.requestMatch(ctx, uid)
	s.opts.metrics.ObserveRequestLatency(time.Since(start))
	if err == nil {
		s.opts.metrics.RecordMatch(string(res.Status), string(res.Tier))
	}
	return res, err
}

func (s *Selector) requestMatch(ctx context.Context, uid string) (Result, error) {
	user, err := s.store.GetUser(ctx, uid)
	if err != nil {
		return Result{}, err
	}
	if user.Sector == "" {
		return Result{}, ErrNoSector
	}

	if res, ok, err := s.existingGroup(ctx, user, StatusAlreadyInGroup); err != nil || ok {
		return res, err
	}

	user, err = s.store.StartSearching(ctx, uid, s.opts.now())
	if err != nil {
		return Result{}, fmt.Errorf("failed to enter pool: %w", err)
	}
	if !user.IsSearching() {
		// Placed into a group between the read above and the transition.
		if res, ok, err := s.existingGroup(ctx, user, StatusAlreadyInGroup); err != nil || ok {
			return res, err
		}
		return Result{Status: StatusSearching}, nil
	}

	if err := s.settle(ctx); err != nil {
		return Result{}, err
	}

	user, err = s.store.GetUser(ctx, uid)
	if err != nil {
		return Result{}, err
	}
	if !user.IsSearching() {
		return s.claimedResult(ctx, user)
	}

	return s.cascade(ctx, user)
}

func (s *Selector) settle(ctx context.Context) error {
	if s.policy.SettleDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.policy.SettleDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// existingGroup reports the user's current group when it still exists.
func (s *Selector) existingGroup(ctx context.Context, user *models.User, status Status) (Result, bool, error) {
	if user.MatchingStatus != models.StatusMatched || user.GroupID == "" {
		return Result{}, false, nil
	}
	group, err := s.store.GetGroup(ctx, user.GroupID)
	if errors.Is(err, storage.ErrNotFound) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, err
	}
	return Result{Status: status, GroupID: group.ID, Tier: group.MatchTier}, true, nil
}

// claimedResult reports a requester that some other request placed in a group.
func (s *Selector) claimedResult(ctx context.Context, user *models.User) (Result, error) {
	res, ok, err := s.existingGroup(ctx, user, StatusMatched)
	if err != nil {
		return Result{}, err
	}
	if ok {
		return res, nil
	}
	return Result{Status: StatusSearching}, nil
}

func (s *Selector) cascade(ctx context.Context, user *models.User) (Result, error) {
	log := s.opts.logger.With("uid", user.UID, "sector", user.Sector)

	own, err := s.snapshot(ctx, user.UID, user.Sector)
	if err != nil {
		return Result{}, err
	}
	if len(own)+1 >= s.policy.TargetSize {
		return s.form(ctx, user, own, s.policy.TargetSize, models.TierPerfect)
	}

	expanded := own
	if sectors := s.policy.ExpandedSectors(user.Sector); len(sectors) > 1 {
		expanded, err = s.snapshot(ctx, user.UID, sectors...)
		if err != nil {
			return Result{}, err
		}
	}
	switch {
	case len(expanded)+1 >= s.policy.TargetSize:
		return s.form(ctx, user, expanded, s.policy.TargetSize, models.TierExpandedFull)
	case len(expanded)+1 >= s.policy.ExpandedMinimum:
		return s.form(ctx, user, expanded, s.policy.ExpandedMinimum, models.TierExpandedPartial)
	}

	waited := user.WaitingSince(s.opts.now())
	if waited > s.policy.GuaranteedAfter {
		anywhere, err := s.snapshot(ctx, user.UID)
		if err != nil {
			return Result{}, err
		}
		if len(anywhere)+1 >= s.policy.GuaranteedSize {
			return s.form(ctx, user, anywhere, s.policy.GuaranteedSize, models.TierGuaranteed)
		}
	}

	log.Debug("No tier satisfiable", "own", len(own), "expanded", len(expanded), "waited", waited)
	return Result{Status: StatusSearching}, nil
}

// snapshot drains the pool for sectors, excluding the requester.
func (s *Selector) snapshot(ctx context.Context, requester string, sectors ...string) ([]*models.User, error) {
	users, err := pool.Collect(s.pool.Snapshot(ctx, sectors...))
	if err != nil {
		return nil, fmt.Errorf("failed to read pool: %w", err)
	}
	return slices.DeleteFunc(users, func(u *models.User) bool { return u.UID == requester }), nil
}

// form picks the size-1 best candidates for the requester and commits them.
func (s *Selector) form(ctx context.Context, user *models.User, candidates []*models.User, size int, tier models.MatchTier) (Result, error) {
	best := TopK(candidates, size-1, func(c *models.User) float64 {
		return s.scorer.Score(user, c)
	})
	members := make([]*models.User, 0, size)
	members = append(members, user)
	for _, c := range best {
		members = append(members, c.User)
	}

	group, err := s.finalizer.Finalize(ctx, user.Sector, members, tier)
	if errors.Is(err, ErrClaimed) {
		s.opts.logger.Info("Lost group commit race", "uid", user.UID, "tier", tier)
		current, err := s.store.GetUser(ctx, user.UID)
		if err != nil {
			return Result{}, err
		}
		if !current.IsSearching() {
			return s.claimedResult(ctx, current)
		}
		return Result{Status: StatusSearching}, nil
	}
	if err != nil {
		return Result{}, err
	}

	s.opts.logger.Info("Group formed",
		"group_id", group.ID,
		"tier", tier,
		"size", len(group.MemberIDs),
		"requester", user.UID,
	)
	return Result{Status: StatusMatched, GroupID: group.ID, Tier: tier}, nil
}
