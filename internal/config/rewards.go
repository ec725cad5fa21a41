package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/mcoot/arcade-judge/internal/model"
)

// Rewards holds the reward table for each settlement period
type Rewards struct {
	Daily   model.RewardTable `toml:"daily"`
	Weekly  model.RewardTable `toml:"weekly"`
	Monthly model.RewardTable `toml:"monthly"`
}

// DefaultRewards returns the production reward tables
func DefaultRewards() Rewards {
	return Rewards{
		Daily: model.RewardTable{
			Reputation: []int64{10, 7, 5, 3, 1},
			Currency:   []int64{3, 2, 1},
		},
		Weekly: model.RewardTable{
			Reputation: []int64{50, 35, 25, 15, 5},
			Currency:   []int64{10, 7, 3},
		},
		Monthly: model.RewardTable{
			Reputation: []int64{150, 100, 75, 45, 15},
			Currency:   []int64{50, 30, 10},
		},
	}
}

// For returns the table for a period
func (r Rewards) For(p model.Period) model.RewardTable {
	switch p {
	case model.PeriodWeekly:
		return r.Weekly
	case model.PeriodMonthly:
		return r.Monthly
	}
	return r.Daily
}

// Validate checks every table has one reputation value per rewarded rank
// and at most one currency value per currency rank
func (r Rewards) Validate() error {
	for _, p := range model.AllPeriods {
		t := r.For(p)
		if len(t.Reputation) != model.RewardedRanks {
			return fmt.Errorf("%w: %s needs %d reputation values, got %d",
				model.ErrInvalidRewardTable, p, model.RewardedRanks, len(t.Reputation))
		}
		if len(t.Currency) > model.CurrencyRanks {
			return fmt.Errorf("%w: %s allows at most %d currency values, got %d",
				model.ErrInvalidRewardTable, p, model.CurrencyRanks, len(t.Currency))
		}
		for _, v := range append(append([]int64(nil), t.Reputation...), t.Currency...) {
			if v < 0 {
				return fmt.Errorf("%w: %s has a negative reward", model.ErrInvalidRewardTable, p)
			}
		}
	}
	return nil
}

// LoadRewards reads reward tables from a TOML file. Periods missing from the
// file keep their defaults. An empty path returns the defaults.
func LoadRewards(path string) (Rewards, error) {
	rewards := DefaultRewards()
	if path == "" {
		return rewards, nil
	}

	var file struct {
		Daily   *model.RewardTable `toml:"daily"`
		Weekly  *model.RewardTable `toml:"weekly"`
		Monthly *model.RewardTable `toml:"monthly"`
	}
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return Rewards{}, fmt.Errorf("decode rewards file: %w", err)
	}
	if file.Daily != nil {
		rewards.Daily = *file.Daily
	}
	if file.Weekly != nil {
		rewards.Weekly = *file.Weekly
	}
	if file.Monthly != nil {
		rewards.Monthly = *file.Monthly
	}

	if err := rewards.Validate(); err != nil {
		return Rewards{}, err
	}
	return rewards, nil
}
