package config

import (
	"fmt"
	"math/big"
	"regexp"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "VAULT_REWARDS"

type Chain string

const (
	Chain_Mainnet Chain = "mainnet"
	Chain_Holesky Chain = "holesky"
	Chain_Local   Chain = "local"
)

func (c Chain) String() string {
	return string(c)
}

func ParseChain(name string) (Chain, error) {
	switch Chain(name) {
	case Chain_Mainnet, Chain_Holesky, Chain_Local:
		return Chain(name), nil
	default:
		return "", fmt.Errorf("unsupported chain %q", name)
	}
}

// Flag names, shared between cmd and config so viper keys stay consistent.
const (
	Debug                     = "debug"
	ChainName                 = "chain"
	EthereumRpcBaseUrl        = "ethereum.rpc-url"
	EthereumRpcBlockChunkSize = "ethereum.rpc-block-chunk-size"
	VaultAddress              = "vault.address"
	VaultDeployBlock          = "vault.deploy-block"
	VaultRewardRatePerBlock   = "vault.reward-rate-per-block"
	VaultTokenDecimals        = "vault.token-decimals"
	EvaluationBlock           = "evaluation-block"
	OutputCsvFile             = "output.csv-file"
)

type EthereumRpcConfig struct {
	BaseUrl string
	// BlockChunkSize bounds the block range of a single eth_getLogs request.
	BlockChunkSize uint64
}

type VaultConfig struct {
	Address     string
	DeployBlock uint64
	// RewardRatePerBlock is the fixed issuance per block in base units,
	// as a decimal string to preserve 256-bit precision.
	RewardRatePerBlock string
	TokenDecimals      int
}

type Config struct {
	Debug             bool
	Chain             Chain
	EthereumRpcConfig EthereumRpcConfig
	VaultConfig       VaultConfig

	// EvaluationBlock is the block rewards are evaluated at; zero means the
	// current head block.
	EvaluationBlock uint64
	OutputCsvFile   string
}

// Known vault coordinates per chain. Flags override; chains without an entry
// must supply the vault via flags.
var vaultCoordinates = map[Chain]VaultConfig{
	Chain_Mainnet: {
		Address:            "0xaF53431488E871D103baA0280b6360998F0F9926",
		DeployBlock:        17564663,
		RewardRatePerBlock: "1000000000000000000",
		TokenDecimals:      18,
	},
}

// NewConfig materializes the configuration from viper-bound flags and
// environment variables.
func NewConfig() *Config {
	chain := Chain(viper.GetString(KebabToSnakeCase(ChainName)))

	vaultConfig := vaultCoordinates[chain]
	if v := viper.GetString(KebabToSnakeCase(VaultAddress)); v != "" {
		vaultConfig.Address = v
	}
	if v := viper.GetUint64(KebabToSnakeCase(VaultDeployBlock)); v != 0 {
		vaultConfig.DeployBlock = v
	}
	if v := viper.GetString(KebabToSnakeCase(VaultRewardRatePerBlock)); v != "" {
		vaultConfig.RewardRatePerBlock = v
	}
	if v := viper.GetInt(KebabToSnakeCase(VaultTokenDecimals)); v != 0 {
		vaultConfig.TokenDecimals = v
	}

	return &Config{
		Debug: viper.GetBool(KebabToSnakeCase(Debug)),
		Chain: chain,
		EthereumRpcConfig: EthereumRpcConfig{
			BaseUrl:        viper.GetString(KebabToSnakeCase(EthereumRpcBaseUrl)),
			BlockChunkSize: viper.GetUint64(KebabToSnakeCase(EthereumRpcBlockChunkSize)),
		},
		VaultConfig:     vaultConfig,
		EvaluationBlock: viper.GetUint64(KebabToSnakeCase(EvaluationBlock)),
		OutputCsvFile:   viper.GetString(KebabToSnakeCase(OutputCsvFile)),
	}
}

func (c *Config) Validate() error {
	if _, err := ParseChain(c.Chain.String()); err != nil {
		return err
	}
	if c.EthereumRpcConfig.BaseUrl == "" {
		return fmt.Errorf("%s is required", EthereumRpcBaseUrl)
	}
	if !common.IsHexAddress(c.VaultConfig.Address) {
		return fmt.Errorf("invalid vault address %q", c.VaultConfig.Address)
	}
	if c.VaultConfig.DeployBlock == 0 {
		return fmt.Errorf("%s is required", VaultDeployBlock)
	}
	if _, err := c.RewardRatePerBlock(); err != nil {
		return err
	}
	return nil
}

// RewardRatePerBlock parses the configured issuance rate.
func (c *Config) RewardRatePerBlock() (*big.Int, error) {
	rate, ok := new(big.Int).SetString(c.VaultConfig.RewardRatePerBlock, 10)
	if !ok || rate.Sign() < 0 {
		return nil, fmt.Errorf("invalid reward rate %q", c.VaultConfig.RewardRatePerBlock)
	}
	return rate, nil
}

// VaultAddressTyped returns the vault address as a checksummed address.
func (c *Config) VaultAddressTyped() common.Address {
	return common.HexToAddress(c.VaultConfig.Address)
}

var kebab = regexp.MustCompile(`[-.]`)

func KebabToSnakeCase(s string) string {
	return kebab.ReplaceAllString(s, "_")
}
