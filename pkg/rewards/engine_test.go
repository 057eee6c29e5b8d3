package rewards

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/stakewatch/vault-rewards/internal/logger"
	"github.com/stakewatch/vault-rewards/pkg/vault"
)

const deployBlock = uint64(17564663)

func setup() (*zap.Logger, error) {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	return l, err
}

func testAddress(b byte) common.Address {
	return common.BytesToAddress([]byte{b})
}

func deposit(account common.Address, shares int64, blockNumber uint64) *vault.Event {
	return &vault.Event{
		Type:        vault.EventType_Deposit,
		Account:     account,
		Shares:      big.NewInt(shares),
		BlockNumber: blockNumber,
	}
}

func withdraw(account common.Address, shares int64, blockNumber uint64) *vault.Event {
	return &vault.Event{
		Type:        vault.EventType_Withdraw,
		Account:     account,
		Shares:      big.NewInt(shares),
		BlockNumber: blockNumber,
	}
}

func transfer(from, to common.Address, shares int64, blockNumber uint64) *vault.Event {
	return &vault.Event{
		Type:        vault.EventType_Transfer,
		From:        from,
		To:          to,
		Shares:      big.NewInt(shares),
		BlockNumber: blockNumber,
	}
}

// sumOfStakes recomputes the total stake from every user record.
func sumOfStakes(e *Engine) *big.Int {
	sum := new(big.Int)
	for _, account := range e.Accounts() {
		sum.Add(sum, e.GetUserRecord(account).SharesStaked)
	}
	return sum
}

func Test_RewardsEngine(t *testing.T) {
	l, err := setup()
	if err != nil {
		t.Fatal(err)
	}

	rate := big.NewInt(1)
	accountA := testAddress(0xa)
	accountB := testAddress(0xb)
	accountC := testAddress(0xc)

	t.Run("Should start zeroed at the deploy block", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)

		assert.Equal(t, deployBlock, engine.LastAccountedBlock())
		assert.Equal(t, 0, engine.TotalSharesStaked().Sign())
		assert.Equal(t, 0, engine.TotalRewardsPerShare().Sign())
		assert.Equal(t, 0, len(engine.Accounts()))
		assert.Nil(t, engine.GetUserRecord(accountA))
	})

	t.Run("Should credit the early depositor and not the late one", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)

		err := engine.ProcessEvents([]*vault.Event{
			deposit(accountA, 1, deployBlock),
			deposit(accountB, 1, deployBlock+100),
		})
		assert.Nil(t, err)

		rewardA, err := engine.PreviewReward(accountA, deployBlock+100)
		assert.Nil(t, err)
		assert.Equal(t, "100", rewardA.String())

		rewardB, err := engine.PreviewReward(accountB, deployBlock+100)
		assert.Nil(t, err)
		assert.Equal(t, "0", rewardB.String())
	})

	t.Run("Should split rewards in proportion to stake over time", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)

		err := engine.ProcessEvents([]*vault.Event{
			deposit(accountA, 1, deployBlock),
			deposit(accountB, 1, deployBlock+100),
		})
		assert.Nil(t, err)

		// A alone for 100 blocks, then A and B split the next 100.
		rewardA, err := engine.PreviewReward(accountA, deployBlock+200)
		assert.Nil(t, err)
		assert.Equal(t, "150", rewardA.String())

		rewardB, err := engine.PreviewReward(accountB, deployBlock+200)
		assert.Nil(t, err)
		assert.Equal(t, "50", rewardB.String())

		// Together they account for the full issuance since deploy.
		total := new(big.Int).Add(rewardA, rewardB)
		assert.Equal(t, "200", total.String())
	})

	t.Run("Should conserve total stake across every applied event", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)

		events := []*vault.Event{
			deposit(accountA, 100, deployBlock+1),
			deposit(accountB, 50, deployBlock+10),
			transfer(accountA, accountC, 30, deployBlock+20),
			withdraw(accountB, 25, deployBlock+30),
			deposit(accountC, 5, deployBlock+40),
			withdraw(accountA, 70, deployBlock+50),
		}

		lastRewardsPerShare := new(big.Int)
		lastBlock := engine.LastAccountedBlock()
		for _, ev := range events {
			err := engine.ApplyEvent(ev)
			assert.Nil(t, err)

			assert.Equal(t, 0, engine.TotalSharesStaked().Cmp(sumOfStakes(engine)))

			// Monotonic accumulators.
			assert.True(t, engine.TotalRewardsPerShare().Cmp(lastRewardsPerShare) >= 0)
			assert.True(t, engine.LastAccountedBlock() >= lastBlock)
			assert.True(t, engine.LastAccountedBlock() <= ev.BlockNumber)
			lastRewardsPerShare = engine.TotalRewardsPerShare()
			lastBlock = engine.LastAccountedBlock()

			// Snapshots never run ahead of the global accumulator.
			for _, account := range engine.Accounts() {
				record := engine.GetUserRecord(account)
				assert.True(t, record.RewardsPerShareSnapshot.Cmp(engine.TotalRewardsPerShare()) <= 0)
			}
		}
	})

	t.Run("Should apply a transfer exactly as a withdraw followed by a deposit", func(t *testing.T) {
		prefix := []*vault.Event{
			deposit(accountA, 100, deployBlock+1),
			deposit(accountB, 40, deployBlock+50),
		}

		transferred := NewEngine(deployBlock, rate, l)
		assert.Nil(t, transferred.ProcessEvents(prefix))
		assert.Nil(t, transferred.ApplyEvent(transfer(accountA, accountB, 60, deployBlock+80)))

		decomposed := NewEngine(deployBlock, rate, l)
		assert.Nil(t, decomposed.ProcessEvents(prefix))
		assert.Nil(t, decomposed.ApplyEvent(withdraw(accountA, 60, deployBlock+80)))
		assert.Nil(t, decomposed.ApplyEvent(deposit(accountB, 60, deployBlock+80)))

		assert.Equal(t, 0, transferred.TotalSharesStaked().Cmp(decomposed.TotalSharesStaked()))
		assert.Equal(t, 0, transferred.TotalRewardsPerShare().Cmp(decomposed.TotalRewardsPerShare()))
		assert.Equal(t, transferred.LastAccountedBlock(), decomposed.LastAccountedBlock())

		for _, account := range []common.Address{accountA, accountB} {
			expected := decomposed.GetUserRecord(account)
			actual := transferred.GetUserRecord(account)
			assert.Equal(t, expected.SharesStaked.String(), actual.SharesStaked.String())
			assert.Equal(t, expected.RewardsPerShareSnapshot.String(), actual.RewardsPerShareSnapshot.String())
			assert.Equal(t, expected.RewardsAccumulated.String(), actual.RewardsAccumulated.String())
		}
	})

	t.Run("Should not change total stake on a transfer", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)
		assert.Nil(t, engine.ApplyEvent(deposit(accountA, 10, deployBlock+1)))

		before := engine.TotalSharesStaked()
		assert.Nil(t, engine.ApplyEvent(transfer(accountA, accountB, 4, deployBlock+5)))
		assert.Equal(t, 0, before.Cmp(engine.TotalSharesStaked()))
	})

	t.Run("Should keep settled rewards through a full withdrawal and re-deposit", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)

		err := engine.ProcessEvents([]*vault.Event{
			deposit(accountA, 10, deployBlock),
			withdraw(accountA, 10, deployBlock+50),
			deposit(accountA, 10, deployBlock+150),
		})
		assert.Nil(t, err)

		// 50 earned before the withdrawal, 50 after the re-deposit. The 100
		// blocks of zero total stake are forfeited, not deferred.
		reward, err := engine.PreviewReward(accountA, deployBlock+200)
		assert.Nil(t, err)
		assert.Equal(t, "100", reward.String())
	})

	t.Run("Should preview settled rewards while total stake is zero", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)

		err := engine.ProcessEvents([]*vault.Event{
			deposit(accountA, 10, deployBlock),
			withdraw(accountA, 10, deployBlock+50),
		})
		assert.Nil(t, err)
		assert.Equal(t, 0, engine.TotalSharesStaked().Sign())

		// No denominator to project across: only the settled component shows,
		// however far out the evaluation block is.
		reward, err := engine.PreviewReward(accountA, deployBlock+500)
		assert.Nil(t, err)
		assert.Equal(t, "50", reward.String())

		// The zero-stake record survives.
		record := engine.GetUserRecord(accountA)
		assert.NotNil(t, record)
		assert.Equal(t, 0, record.SharesStaked.Sign())
	})

	t.Run("Should return zero for an account with no record", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)
		assert.Nil(t, engine.ApplyEvent(deposit(accountA, 1, deployBlock+1)))

		reward, err := engine.PreviewReward(accountB, deployBlock+10)
		assert.Nil(t, err)
		assert.Equal(t, 0, reward.Sign())
	})

	t.Run("Should be idempotent across repeated previews", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)
		assert.Nil(t, engine.ApplyEvent(deposit(accountA, 3, deployBlock+1)))

		lastAccounted := engine.LastAccountedBlock()
		rewardsPerShare := engine.TotalRewardsPerShare()

		first, err := engine.PreviewReward(accountA, deployBlock+90)
		assert.Nil(t, err)
		second, err := engine.PreviewReward(accountA, deployBlock+90)
		assert.Nil(t, err)

		assert.Equal(t, first.String(), second.String())
		assert.Equal(t, lastAccounted, engine.LastAccountedBlock())
		assert.Equal(t, 0, rewardsPerShare.Cmp(engine.TotalRewardsPerShare()))
	})

	t.Run("Should reject a withdrawal for an unknown account", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)
		assert.Nil(t, engine.ApplyEvent(deposit(accountA, 1, deployBlock+1)))

		err := engine.ApplyEvent(withdraw(accountB, 1, deployBlock+2))
		assert.NotNil(t, err)
		assert.True(t, errors.Is(err, ErrUnknownAccount))
	})

	t.Run("Should reject a withdrawal exceeding the recorded stake", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)
		assert.Nil(t, engine.ApplyEvent(deposit(accountA, 5, deployBlock+1)))

		err := engine.ApplyEvent(withdraw(accountA, 6, deployBlock+2))
		assert.NotNil(t, err)
		assert.True(t, errors.Is(err, ErrShareUnderflow))
	})

	t.Run("Should reject an event below the last accounted block", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)
		assert.Nil(t, engine.ApplyEvent(deposit(accountA, 1, deployBlock+10)))

		err := engine.ApplyEvent(deposit(accountB, 1, deployBlock+5))
		assert.NotNil(t, err)
		assert.True(t, errors.Is(err, ErrOutOfOrderEvent))
	})

	t.Run("Should reject a transfer from an account that never deposited", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)
		assert.Nil(t, engine.ApplyEvent(deposit(accountA, 1, deployBlock+1)))

		err := engine.ApplyEvent(transfer(accountB, accountA, 1, deployBlock+2))
		assert.NotNil(t, err)
		assert.True(t, errors.Is(err, ErrUnknownAccount))
	})

	t.Run("Should reject a preview below the last accounted block", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)
		assert.Nil(t, engine.ApplyEvent(deposit(accountA, 1, deployBlock+10)))

		_, err := engine.PreviewReward(accountA, deployBlock+5)
		assert.NotNil(t, err)
		assert.True(t, errors.Is(err, ErrEvaluationBlockTooLow))
	})

	t.Run("Should stop the replay at the first fatal event", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)

		err := engine.ProcessEvents([]*vault.Event{
			deposit(accountA, 5, deployBlock+1),
			withdraw(accountA, 10, deployBlock+2),
			deposit(accountB, 1, deployBlock+3),
		})
		assert.NotNil(t, err)
		assert.True(t, errors.Is(err, ErrShareUnderflow))

		// The event after the failure never applied.
		assert.Nil(t, engine.GetUserRecord(accountB))
	})

	t.Run("Should list accounts in first-deposit order", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)

		err := engine.ProcessEvents([]*vault.Event{
			deposit(accountC, 1, deployBlock+1),
			deposit(accountA, 1, deployBlock+2),
			deposit(accountC, 1, deployBlock+3),
			deposit(accountB, 1, deployBlock+4),
		})
		assert.Nil(t, err)
		assert.Equal(t, []common.Address{accountC, accountA, accountB}, engine.Accounts())
	})

	t.Run("Should forfeit issuance while total stake is zero", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)

		// Nothing staked for the first 1000 blocks.
		assert.Nil(t, engine.ApplyEvent(deposit(accountA, 1, deployBlock+1000)))

		reward, err := engine.PreviewReward(accountA, deployBlock+1100)
		assert.Nil(t, err)
		assert.Equal(t, "100", reward.String())
	})
}
