// Package ethereum wraps the go-ethereum RPC client with the small surface
// the replay needs: head-block lookup and topic-filtered log queries.
package ethereum

import (
	"context"
	"math/big"

	goethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type ClientConfig struct {
	BaseUrl string
}

type Client struct {
	client *ethclient.Client
	logger *zap.Logger
}

func NewClient(ctx context.Context, cfg *ClientConfig, l *zap.Logger) (*Client, error) {
	client, err := ethclient.DialContext(ctx, cfg.BaseUrl)
	if err != nil {
		l.Sugar().Errorw("failed to dial ethereum node",
			zap.String("baseUrl", cfg.BaseUrl),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "failed to dial ethereum node")
	}
	return &Client{
		client: client,
		logger: l,
	}, nil
}

// GetLatestBlockNumber returns the current head block number.
func (c *Client) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	blockNumber, err := c.client.BlockNumber(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get latest block number")
	}
	return blockNumber, nil
}

// GetLogs fetches all logs emitted by the address for the given topic0 over
// the inclusive block range.
func (c *Client) GetLogs(ctx context.Context, address common.Address, topic common.Hash, startBlockInclusive uint64, endBlockInclusive uint64) ([]types.Log, error) {
	query := goethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(startBlockInclusive),
		ToBlock:   new(big.Int).SetUint64(endBlockInclusive),
		Addresses: []common.Address{address},
		Topics:    [][]common.Hash{{topic}},
	}

	logs, err := c.client.FilterLogs(ctx, query)
	if err != nil {
		c.logger.Sugar().Errorw("failed to fetch logs",
			zap.String("address", address.Hex()),
			zap.String("topic", topic.Hex()),
			zap.Uint64("startBlock", startBlockInclusive),
			zap.Uint64("endBlock", endBlockInclusive),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "failed to fetch logs")
	}
	return logs, nil
}

func (c *Client) Close() {
	c.client.Close()
}
