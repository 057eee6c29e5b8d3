package cmd

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stakewatch/vault-rewards/internal/config"
	"github.com/stakewatch/vault-rewards/internal/logger"
	"github.com/stakewatch/vault-rewards/internal/version"
	"github.com/stakewatch/vault-rewards/pkg/clients/ethereum"
	"github.com/stakewatch/vault-rewards/pkg/fetcher"
	"github.com/stakewatch/vault-rewards/pkg/parser"
	"github.com/stakewatch/vault-rewards/pkg/rewards"
	"github.com/stakewatch/vault-rewards/pkg/vault"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch the vault's event history, replay it, and report rewards",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.NewConfig()
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid configuration: %v", err)
		}

		l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug})
		defer l.Sync() //nolint:errcheck

		l.Sugar().Infow("vault-rewards",
			zap.String("version", version.GetVersion()),
			zap.String("commit", version.GetCommit()),
			zap.String("chain", cfg.Chain.String()),
			zap.String("vaultAddress", cfg.VaultConfig.Address),
		)

		ctx := context.Background()

		client, err := ethereum.NewClient(ctx, &ethereum.ClientConfig{
			BaseUrl: cfg.EthereumRpcConfig.BaseUrl,
		}, l)
		if err != nil {
			l.Sugar().Fatalw("Failed to create ethereum client", zap.Error(err))
		}
		defer client.Close()

		evaluationBlock := cfg.EvaluationBlock
		if evaluationBlock == 0 {
			evaluationBlock, err = client.GetLatestBlockNumber(ctx)
			if err != nil {
				l.Sugar().Fatalw("Failed to get latest block number", zap.Error(err))
			}
		}

		f := fetcher.NewFetcher(client, &fetcher.FetcherConfig{
			VaultAddress:   cfg.VaultAddressTyped(),
			DeployBlock:    cfg.VaultConfig.DeployBlock,
			BlockChunkSize: cfg.EthereumRpcConfig.BlockChunkSize,
			ShowProgress:   true,
		}, l)

		logs, err := f.FetchVaultLogs(ctx, evaluationBlock)
		if err != nil {
			l.Sugar().Fatalw("Failed to fetch vault logs", zap.Error(err))
		}

		events, err := parser.NewLogParser(l).ParseVaultLogs(logs)
		if err != nil {
			l.Sugar().Fatalw("Failed to parse vault logs", zap.Error(err))
		}
		vault.SortEvents(events)

		rate, err := cfg.RewardRatePerBlock()
		if err != nil {
			l.Sugar().Fatalw("Failed to parse reward rate", zap.Error(err))
		}

		engine := rewards.NewEngine(cfg.VaultConfig.DeployBlock, rate, l)
		if err := engine.ProcessEvents(events); err != nil {
			l.Sugar().Fatalw("Replay failed", zap.Error(err))
		}

		l.Sugar().Infow("replay complete",
			zap.Int("events", len(events)),
			zap.Uint64("evaluationBlock", evaluationBlock),
			zap.String("totalSharesStaked", engine.TotalSharesStaked().String()),
		)

		reporter := rewards.NewReporter(engine, int32(cfg.VaultConfig.TokenDecimals), l)

		expectedTotal := new(big.Int).SetUint64(evaluationBlock - cfg.VaultConfig.DeployBlock)
		expectedTotal.Mul(expectedTotal, rate)

		totalRewards, err := reporter.TotalRewards(evaluationBlock)
		if err != nil {
			l.Sugar().Fatalw("Failed to compute total rewards", zap.Error(err))
		}

		fmt.Printf("evaluation block:       %d\n", evaluationBlock)
		fmt.Printf("total rewards expected: %s\n", reporter.FormatBaseUnits(expectedTotal))
		fmt.Printf("total rewards given:    %s\n", reporter.FormatBaseUnits(totalRewards))

		ranked, err := reporter.RankedUserRewards(evaluationBlock)
		if err != nil {
			l.Sugar().Fatalw("Failed to rank user rewards", zap.Error(err))
		}
		for _, ur := range ranked {
			fmt.Printf("%s — %s\n", ur.Account.Hex(), reporter.FormatBaseUnits(ur.Reward))
		}

		if cfg.OutputCsvFile != "" {
			out, err := os.Create(cfg.OutputCsvFile)
			if err != nil {
				l.Sugar().Fatalw("Failed to create output file", zap.Error(err))
			}
			defer out.Close()
			if err := reporter.WriteRankedCSV(out, evaluationBlock); err != nil {
				l.Sugar().Fatalw("Failed to write ranked rewards csv", zap.Error(err))
			}
			l.Sugar().Infow("wrote ranked rewards csv", zap.String("path", cfg.OutputCsvFile))
		}
	},
}
