package rewards

import (
	"bytes"
	"io"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UserReward is one account's previewed reward at an evaluation block.
type UserReward struct {
	Account common.Address
	Reward  *big.Int
}

// Reporter is a read-only aggregation layer over the engine. It previews
// every known account at a given evaluation block and ranks the results.
type Reporter struct {
	engine *Engine
	logger *zap.Logger

	// tokenDecimals is the decimal scale of the reward token, used only for
	// human-readable output.
	tokenDecimals int32
}

func NewReporter(engine *Engine, tokenDecimals int32, l *zap.Logger) *Reporter {
	return &Reporter{
		engine:        engine,
		logger:        l,
		tokenDecimals: tokenDecimals,
	}
}

// TotalRewards sums the previewed reward of every account with a record.
func (r *Reporter) TotalRewards(evaluationBlock uint64) (*big.Int, error) {
	total := new(big.Int)
	for _, account := range r.engine.Accounts() {
		reward, err := r.engine.PreviewReward(account, evaluationBlock)
		if err != nil {
			return nil, err
		}
		total.Add(total, reward)
	}
	return total, nil
}

// RankedUserRewards previews every account with a record, drops zero results
// and sorts the rest by reward descending. Equal rewards order by account
// ascending so the output is reproducible.
func (r *Reporter) RankedUserRewards(evaluationBlock uint64) ([]*UserReward, error) {
	ranked := make([]*UserReward, 0)
	for _, account := range r.engine.Accounts() {
		reward, err := r.engine.PreviewReward(account, evaluationBlock)
		if err != nil {
			return nil, err
		}
		if reward.Sign() == 0 {
			continue
		}
		ranked = append(ranked, &UserReward{Account: account, Reward: reward})
	}

	slices.SortFunc(ranked, func(a, b *UserReward) int {
		if c := b.Reward.Cmp(a.Reward); c != 0 {
			return c
		}
		return bytes.Compare(a.Account.Bytes(), b.Account.Bytes())
	})
	return ranked, nil
}

type rankedRewardRow struct {
	Rank           int    `csv:"rank"`
	Account        string `csv:"account"`
	Reward         string `csv:"rewardBaseUnits"`
	RewardTokens   string `csv:"rewardTokens"`
	PercentOfTotal string `csv:"percentOfTotal"`
}

// WriteRankedCSV writes the ranked reward breakdown for the evaluation block
// as CSV.
func (r *Reporter) WriteRankedCSV(w io.Writer, evaluationBlock uint64) error {
	ranked, err := r.RankedUserRewards(evaluationBlock)
	if err != nil {
		return err
	}
	total, err := r.TotalRewards(evaluationBlock)
	if err != nil {
		return err
	}
	totalDecimal := decimal.NewFromBigInt(total, 0)

	rows := make([]*rankedRewardRow, 0, len(ranked))
	for i, ur := range ranked {
		percent := decimal.Zero
		if totalDecimal.Sign() > 0 {
			percent = decimal.NewFromBigInt(ur.Reward, 0).
				Mul(decimal.NewFromInt(100)).
				DivRound(totalDecimal, 6)
		}
		rows = append(rows, &rankedRewardRow{
			Rank:           i + 1,
			Account:        ur.Account.Hex(),
			Reward:         ur.Reward.String(),
			RewardTokens:   r.FormatBaseUnits(ur.Reward),
			PercentOfTotal: percent.String(),
		})
	}

	r.logger.Sugar().Debugw("writing ranked rewards csv",
		zap.Uint64("evaluationBlock", evaluationBlock),
		zap.Int("rows", len(rows)),
	)
	return gocsv.Marshal(rows, w)
}

// FormatBaseUnits renders a base-unit amount at the reward token's decimal
// scale.
func (r *Reporter) FormatBaseUnits(amount *big.Int) string {
	return decimal.NewFromBigInt(amount, -r.tokenDecimals).String()
}
