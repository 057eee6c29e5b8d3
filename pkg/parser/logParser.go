// Package parser decodes raw vault logs into typed events. Accounts come from
// indexed topics, share amounts from the ABI-encoded data words; transfers
// touching the zero address (mints and burns) are dropped before they reach
// the accounting engine.
package parser

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/stakewatch/vault-rewards/pkg/vault"
)

const wordSize = 32

type LogParser struct {
	logger *zap.Logger
}

func NewLogParser(l *zap.Logger) *LogParser {
	return &LogParser{logger: l}
}

// ParseVaultLogs decodes a batch of raw logs. Logs with an unrecognized
// topic0 are skipped; structurally malformed logs for a recognized topic are
// decode errors.
func (p *LogParser) ParseVaultLogs(logs []types.Log) ([]*vault.Event, error) {
	events := make([]*vault.Event, 0, len(logs))
	for _, log := range logs {
		event, err := p.ParseVaultLog(log)
		if err != nil {
			return nil, err
		}
		if event == nil {
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

// ParseVaultLog decodes a single log. A nil event with a nil error means the
// log was filtered (unknown topic or zero-address transfer).
func (p *LogParser) ParseVaultLog(log types.Log) (*vault.Event, error) {
	if len(log.Topics) == 0 {
		return nil, errors.Errorf("log with no topics in tx %s", log.TxHash)
	}

	switch log.Topics[0] {
	case vault.DepositTopic:
		return p.parseDepositLog(log)
	case vault.WithdrawTopic:
		return p.parseWithdrawLog(log)
	case vault.TransferTopic:
		return p.parseTransferLog(log)
	default:
		p.logger.Sugar().Debugw("skipping log with unrecognized topic",
			zap.String("topic", log.Topics[0].Hex()),
			zap.Uint64("blockNumber", log.BlockNumber),
		)
		return nil, nil
	}
}

// Deposit(address indexed caller, address indexed owner, uint256 assets, uint256 shares)
func (p *LogParser) parseDepositLog(log types.Log) (*vault.Event, error) {
	if len(log.Topics) < 3 {
		return nil, errors.Errorf("deposit log missing owner topic in tx %s", log.TxHash)
	}
	shares, err := dataWord(log, 1)
	if err != nil {
		return nil, errors.Wrapf(err, "deposit log in tx %s", log.TxHash)
	}

	return &vault.Event{
		Type:            vault.EventType_Deposit,
		Account:         topicToAddress(log.Topics[2]),
		Shares:          shares,
		BlockNumber:     log.BlockNumber,
		LogIndex:        uint64(log.Index),
		TransactionHash: log.TxHash,
	}, nil
}

// Withdraw(address indexed caller, address indexed receiver, address indexed owner, uint256 assets, uint256 shares)
func (p *LogParser) parseWithdrawLog(log types.Log) (*vault.Event, error) {
	if len(log.Topics) < 4 {
		return nil, errors.Errorf("withdraw log missing owner topic in tx %s", log.TxHash)
	}
	shares, err := dataWord(log, 1)
	if err != nil {
		return nil, errors.Wrapf(err, "withdraw log in tx %s", log.TxHash)
	}

	return &vault.Event{
		Type:            vault.EventType_Withdraw,
		Account:         topicToAddress(log.Topics[3]),
		Shares:          shares,
		BlockNumber:     log.BlockNumber,
		LogIndex:        uint64(log.Index),
		TransactionHash: log.TxHash,
	}, nil
}

// Transfer(address indexed from, address indexed to, uint256 value)
func (p *LogParser) parseTransferLog(log types.Log) (*vault.Event, error) {
	if len(log.Topics) < 3 {
		return nil, errors.Errorf("transfer log missing topics in tx %s", log.TxHash)
	}

	from := topicToAddress(log.Topics[1])
	to := topicToAddress(log.Topics[2])

	// Mints and burns move shares in or out of existence; the corresponding
	// Deposit/Withdraw events carry the stake change.
	if from == (common.Address{}) || to == (common.Address{}) {
		p.logger.Sugar().Debugw("skipping zero-address transfer",
			zap.String("from", from.Hex()),
			zap.String("to", to.Hex()),
			zap.Uint64("blockNumber", log.BlockNumber),
		)
		return nil, nil
	}

	shares, err := dataWord(log, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "transfer log in tx %s", log.TxHash)
	}

	return &vault.Event{
		Type:            vault.EventType_Transfer,
		From:            from,
		To:              to,
		Shares:          shares,
		BlockNumber:     log.BlockNumber,
		LogIndex:        uint64(log.Index),
		TransactionHash: log.TxHash,
	}, nil
}

func topicToAddress(topic common.Hash) common.Address {
	return common.BytesToAddress(topic.Bytes())
}

func dataWord(log types.Log, index int) (*big.Int, error) {
	start := index * wordSize
	end := start + wordSize
	if len(log.Data) < end {
		return nil, errors.Errorf("log data too short: have %d bytes, need %d", len(log.Data), end)
	}
	return new(big.Int).SetBytes(log.Data[start:end]), nil
}
