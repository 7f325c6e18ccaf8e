package matching

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/mmynk/tablemates/internal/models"
	"github.com/mmynk/tablemates/internal/pool"
)

// SweepResult summarizes one pass over the pool.
type SweepResult struct {
	Groups []*models.Group
	// Skipped counts groups that lost a commit race. Their unclaimed
	// members stay searching.
	Skipped int
}

// Sweep forms as many full groups as the pool allows in every sector.
// Within a sector the longest waiter leads each group and is joined by
// its best scorers, until fewer than TargetSize users remain.
func (s *Selector) Sweep(ctx context.Context) (SweepResult, error) {
	users, err := pool.Collect(s.pool.Snapshot(ctx))
	if err != nil {
		return SweepResult{}, fmt.Errorf("failed to read pool: %w", err)
	}

	bySector := make(map[string][]*models.User)
	for _, u := range users {
		if u.Sector != "" {
			bySector[u.Sector] = append(bySector[u.Sector], u)
		}
	}
	sectors := make([]string, 0, len(bySector))
	for sector := range bySector {
		sectors = append(sectors, sector)
	}
	slices.Sort(sectors)

	var res SweepResult
	for _, sector := range sectors {
		remaining := bySector[sector]
		for len(remaining) >= s.policy.TargetSize {
			if err := ctx.Err(); err != nil {
				return res, err
			}

			leader := remaining[0]
			best := TopK(remaining[1:], s.policy.TargetSize-1, func(c *models.User) float64 {
				return s.scorer.Score(leader, c)
			})
			members := []*models.User{leader}
			picked := map[string]bool{leader.UID: true}
			for _, c := range best {
				members = append(members, c.User)
				picked[c.User.UID] = true
			}
			remaining = slices.DeleteFunc(remaining, func(u *models.User) bool { return picked[u.UID] })

			group, err := s.finalizer.Finalize(ctx, sector, members, models.TierPerfect)
			if errors.Is(err, ErrClaimed) {
				res.Skipped++
				s.opts.logger.Info("Sweep skipped claimed group", "sector", sector, "leader", leader.UID)
				continue
			}
			if err != nil {
				return res, err
			}
			s.opts.metrics.RecordMatch(string(StatusMatched), string(models.TierPerfect))
			res.Groups = append(res.Groups, group)
		}
	}

	s.opts.logger.Info("Pool swept",
		"searching", len(users),
		"groups", len(res.Groups),
		"skipped", res.Skipped,
	)
	return res, nil
}
