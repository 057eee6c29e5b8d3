package rewards

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// PreviewReward returns the account's total reward entitlement as of the
// evaluation block, in base units. It is a pure read: the accumulator is
// projected forward without moving the last accounted block, so previews are
// idempotent and may be evaluated in any order once the replay is done.
//
// An account with no record has earned nothing. When the total stake is zero
// there is no denominator to project future issuance across, so the result is
// whatever the record already holds: the settled rewards plus any stale delta
// against the snapshot.
func (e *Engine) PreviewReward(account common.Address, evaluationBlock uint64) (*big.Int, error) {
	if evaluationBlock < e.lastAccountedBlock {
		return nil, errors.Wrapf(ErrEvaluationBlockTooLow,
			"evaluation block %d, last accounted block %d",
			evaluationBlock, e.lastAccountedBlock)
	}

	record, ok := e.userRecords.Get(account)
	if !ok {
		return new(big.Int), nil
	}

	projectedRewardsPerShare := new(big.Int).Set(e.totalRewardsPerShare)
	if e.totalSharesStaked.Sign() > 0 {
		pending := new(big.Int).SetUint64(evaluationBlock - e.lastAccountedBlock)
		pending.Mul(pending, e.rewardRatePerBlock)
		pending.Mul(pending, Precision)
		pending.Div(pending, e.totalSharesStaked)
		projectedRewardsPerShare.Add(projectedRewardsPerShare, pending)
	}

	reward := new(big.Int).Sub(projectedRewardsPerShare, record.RewardsPerShareSnapshot)
	reward.Mul(reward, record.SharesStaked)
	reward.Add(reward, record.RewardsAccumulated)

	// Both the projected and the settled components carry the Precision
	// factor; descale once.
	return reward.Div(reward, Precision), nil
}
