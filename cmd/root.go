package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stakewatch/vault-rewards/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "vault-rewards",
	Short: "Reconstructs per-user staking vault rewards by replaying the vault's on-chain event history",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	initConfig(rootCmd)

	rootCmd.PersistentFlags().Bool(config.Debug, false, `"true" or "false"`)
	rootCmd.PersistentFlags().StringP(config.ChainName, "c", "mainnet", "The chain to use (mainnet, holesky, local)")

	rootCmd.PersistentFlags().String(config.EthereumRpcBaseUrl, "", `e.g. "http://<hostname>:8545"`)
	rootCmd.PersistentFlags().Uint64(config.EthereumRpcBlockChunkSize, 4000, `The maximum block range of a single eth_getLogs request`)

	rootCmd.PersistentFlags().String(config.VaultAddress, "", `Vault contract address (defaults to the chain's known vault)`)
	rootCmd.PersistentFlags().Uint64(config.VaultDeployBlock, 0, `Block the vault was deployed at (defaults to the chain's known vault)`)
	rootCmd.PersistentFlags().String(config.VaultRewardRatePerBlock, "", `Reward issuance per block in base units`)
	rootCmd.PersistentFlags().Int(config.VaultTokenDecimals, 0, `Decimal scale of the reward token`)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)

	runCmd.PersistentFlags().Uint64(config.EvaluationBlock, 0, `Block to evaluate rewards at (0 = current head block)`)
	runCmd.PersistentFlags().String(config.OutputCsvFile, "", `Write the ranked reward breakdown to this CSV file`)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
	runCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		key := config.KebabToSnakeCase(f.Name)
		viper.BindPFlag(key, f) //nolint:errcheck
		viper.BindEnv(key)      //nolint:errcheck
	})
}

func initConfig(cmd *cobra.Command) {
	viper.SetEnvPrefix(config.ENV_PREFIX)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}
