// Package fetcher retrieves the vault's event logs from an Ethereum node. It
// splits the block range into bounded chunks, fetches chunks concurrently per
// event topic, and retries transient failures with exponential backoff.
package fetcher

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/stakewatch/vault-rewards/pkg/clients/ethereum"
	"github.com/stakewatch/vault-rewards/pkg/vault"
)

// DefaultBlockChunkSize bounds the block range of a single eth_getLogs
// request to avoid oversized responses from the node.
const DefaultBlockChunkSize uint64 = 4000

type FetcherConfig struct {
	VaultAddress   common.Address
	DeployBlock    uint64
	BlockChunkSize uint64
	// ShowProgress renders a progress bar across chunks for interactive runs.
	ShowProgress bool
}

type Fetcher struct {
	EthClient     *ethereum.Client
	Logger        *zap.Logger
	FetcherConfig *FetcherConfig
}

func NewFetcher(ethClient *ethereum.Client, cfg *FetcherConfig, l *zap.Logger) *Fetcher {
	return &Fetcher{
		EthClient:     ethClient,
		Logger:        l,
		FetcherConfig: cfg,
	}
}

type blockChunk struct {
	start uint64
	end   uint64
}

func (f *Fetcher) chunks(endBlockInclusive uint64) []blockChunk {
	chunkSize := f.FetcherConfig.BlockChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultBlockChunkSize
	}

	chunks := make([]blockChunk, 0)
	for start := f.FetcherConfig.DeployBlock; start <= endBlockInclusive; start += chunkSize {
		end := start + chunkSize - 1
		if end > endBlockInclusive {
			end = endBlockInclusive
		}
		chunks = append(chunks, blockChunk{start: start, end: end})
	}
	return chunks
}

// FetchVaultLogs retrieves every Deposit, Withdraw and Transfer log emitted by
// the vault between its deploy block and the end block, inclusive. The result
// carries no particular order; the sequencer owns ordering.
func (f *Fetcher) FetchVaultLogs(ctx context.Context, endBlockInclusive uint64) ([]types.Log, error) {
	if endBlockInclusive < f.FetcherConfig.DeployBlock {
		return nil, errors.Errorf("end block %d precedes vault deploy block %d",
			endBlockInclusive, f.FetcherConfig.DeployBlock)
	}

	topics := vault.EventTopics()
	chunks := f.chunks(endBlockInclusive)
	numTasks := len(topics) * len(chunks)

	f.Logger.Sugar().Infow("fetching vault logs",
		zap.String("vaultAddress", f.FetcherConfig.VaultAddress.Hex()),
		zap.Uint64("startBlock", f.FetcherConfig.DeployBlock),
		zap.Uint64("endBlock", endBlockInclusive),
		zap.Int("chunks", len(chunks)),
		zap.Int("topics", len(topics)),
	)

	var bar *progressbar.ProgressBar
	if f.FetcherConfig.ShowProgress {
		bar = progressbar.NewOptions(numTasks,
			progressbar.OptionSetDescription("fetching vault logs"),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	logsCollector := make(chan []types.Log, numTasks)
	errorCollector := make(chan error, numTasks)

	wg := &sync.WaitGroup{}
	for _, topic := range topics {
		for _, chunk := range chunks {
			wg.Add(1)
			go func(topic common.Hash, chunk blockChunk) {
				defer wg.Done()
				logs, err := f.fetchChunkWithRetries(ctx, topic, chunk)
				if err != nil {
					errorCollector <- err
					return
				}
				logsCollector <- logs
				if bar != nil {
					_ = bar.Add(1)
				}
			}(topic, chunk)
		}
	}
	wg.Wait()
	close(logsCollector)
	close(errorCollector)

	for err := range errorCollector {
		return nil, err
	}

	collectedLogs := make([]types.Log, 0)
	for logs := range logsCollector {
		collectedLogs = append(collectedLogs, logs...)
	}

	f.Logger.Sugar().Infow("fetched vault logs",
		zap.Uint64("startBlock", f.FetcherConfig.DeployBlock),
		zap.Uint64("endBlock", endBlockInclusive),
		zap.Int("count", len(collectedLogs)),
	)
	return collectedLogs, nil
}

func (f *Fetcher) fetchChunkWithRetries(ctx context.Context, topic common.Hash, chunk blockChunk) ([]types.Log, error) {
	retries := []int{1, 2, 4, 8, 16, 32, 64}
	var e error
	for i, r := range retries {
		logs, err := f.EthClient.GetLogs(ctx, f.FetcherConfig.VaultAddress, topic, chunk.start, chunk.end)
		if err == nil {
			if i > 0 {
				f.Logger.Sugar().Infow("successfully fetched logs for chunk after retries",
					zap.Uint64("startBlock", chunk.start),
					zap.Uint64("endBlock", chunk.end),
					zap.Int("retries", i),
				)
			}
			return logs, nil
		}
		e = err
		f.Logger.Sugar().Infow("failed to fetch logs for chunk",
			zap.Uint64("startBlock", chunk.start),
			zap.Uint64("endBlock", chunk.end),
			zap.String("topic", topic.Hex()),
			zap.Int("sleepTime", r),
		)
		time.Sleep(time.Duration(r) * time.Second)
	}
	f.Logger.Sugar().Errorw("failed to fetch logs for chunk, exhausted all retries",
		zap.Uint64("startBlock", chunk.start),
		zap.Uint64("endBlock", chunk.end),
		zap.String("topic", topic.Hex()),
		zap.Error(e),
	)
	return nil, e
}
