package ranking

import (
	"sort"

	"github.com/mcoot/arcade-judge/internal/model"
)

// Rank returns the period's participants (score > 0, in input order) and the
// awards for the top model.RewardedRanks of them. Equal scores keep their input
// order; there is no secondary key.
func Rank(users []*model.User, period model.Period, table model.RewardTable) ([]model.UserID, []model.Award) {
	var ranked []*model.User
	for _, u := range users {
		if u.Score(period) > 0 {
			ranked = append(ranked, u)
		}
	}

	participants := make([]model.UserID, len(ranked))
	for i, u := range ranked {
		participants[i] = u.ID
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score(period) > ranked[j].Score(period)
	})

	n := min(len(ranked), model.RewardedRanks)
	awards := make([]model.Award, 0, n)
	for i := 0; i < n; i++ {
		awards = append(awards, model.Award{
			Rank:       i + 1,
			UserID:     ranked[i].ID,
			Score:      ranked[i].Score(period),
			Reputation: table.ReputationFor(i),
			Currency:   table.CurrencyFor(i),
		})
	}
	return participants, awards
}
