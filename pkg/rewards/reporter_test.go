package rewards

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stakewatch/vault-rewards/pkg/vault"
)

func Test_RewardsReporter(t *testing.T) {
	l, err := setup()
	if err != nil {
		t.Fatal(err)
	}

	rate := big.NewInt(1)
	accountA := testAddress(0xa)
	accountB := testAddress(0xb)
	accountC := testAddress(0xc)

	t.Run("Should sum previews across all accounts", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)
		assert.Nil(t, engine.ProcessEvents([]*vault.Event{
			deposit(accountA, 1, deployBlock),
			deposit(accountB, 1, deployBlock+100),
		}))

		reporter := NewReporter(engine, 0, l)
		total, err := reporter.TotalRewards(deployBlock + 200)
		assert.Nil(t, err)
		assert.Equal(t, "200", total.String())
	})

	t.Run("Should rank users by reward descending and drop zero results", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)
		assert.Nil(t, engine.ProcessEvents([]*vault.Event{
			deposit(accountA, 1, deployBlock),
			deposit(accountB, 1, deployBlock+100),
			// C deposits at the evaluation block and has earned nothing yet.
			deposit(accountC, 1, deployBlock+200),
		}))

		reporter := NewReporter(engine, 0, l)
		ranked, err := reporter.RankedUserRewards(deployBlock + 200)
		assert.Nil(t, err)

		assert.Equal(t, 2, len(ranked))
		assert.Equal(t, accountA, ranked[0].Account)
		assert.Equal(t, "150", ranked[0].Reward.String())
		assert.Equal(t, accountB, ranked[1].Account)
		assert.Equal(t, "50", ranked[1].Reward.String())
	})

	t.Run("Should break reward ties by account ascending", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)
		// B before A in insertion order, equal stakes at the same block.
		assert.Nil(t, engine.ProcessEvents([]*vault.Event{
			deposit(accountB, 1, deployBlock),
			deposit(accountA, 1, deployBlock),
		}))

		reporter := NewReporter(engine, 0, l)
		ranked, err := reporter.RankedUserRewards(deployBlock + 100)
		assert.Nil(t, err)

		assert.Equal(t, 2, len(ranked))
		assert.Equal(t, ranked[0].Reward.String(), ranked[1].Reward.String())
		assert.Equal(t, accountA, ranked[0].Account)
		assert.Equal(t, accountB, ranked[1].Account)
	})

	t.Run("Should write the ranked breakdown as csv", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)
		assert.Nil(t, engine.ProcessEvents([]*vault.Event{
			deposit(accountA, 1, deployBlock),
			deposit(accountB, 1, deployBlock+100),
		}))

		reporter := NewReporter(engine, 0, l)

		buf := &bytes.Buffer{}
		err := reporter.WriteRankedCSV(buf, deployBlock+200)
		assert.Nil(t, err)

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		assert.Equal(t, 3, len(lines))
		assert.Equal(t, "rank,account,rewardBaseUnits,rewardTokens,percentOfTotal", lines[0])
		assert.True(t, strings.HasPrefix(lines[1], "1,"))
		assert.Contains(t, lines[1], "150")
		assert.Contains(t, lines[1], "75")
		assert.Contains(t, lines[2], "50")
		assert.Contains(t, lines[2], "25")
	})

	t.Run("Should format base units at the token's decimal scale", func(t *testing.T) {
		engine := NewEngine(deployBlock, rate, l)
		reporter := NewReporter(engine, 18, l)

		amount, ok := new(big.Int).SetString("1500000000000000000", 10)
		assert.True(t, ok)
		assert.Equal(t, "1.5", reporter.FormatBaseUnits(amount))
		assert.Equal(t, "0", reporter.FormatBaseUnits(big.NewInt(0)))
	})
}
