// Package vault defines the typed event model for the staking vault contract:
// the three stake-changing events emitted on chain, their log signatures, and
// the canonical replay ordering.
package vault

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type EventType string

const (
	EventType_Deposit  EventType = "deposit"
	EventType_Withdraw EventType = "withdraw"
	EventType_Transfer EventType = "transfer"
)

// Event is a single stake-changing vault event.
//
// Deposit and Withdraw use Account; Transfer uses From and To. Shares is the
// 18-decimal share amount from the log data. LogIndex is carried from the
// source log so that events sharing a block replay in a deterministic order.
type Event struct {
	Type            EventType
	Account         common.Address
	From            common.Address
	To              common.Address
	Shares          *big.Int
	BlockNumber     uint64
	LogIndex        uint64
	TransactionHash common.Hash
}

// Event signatures of the vault contract, as emitted on chain.
const (
	DepositEventSignature  = "Deposit(address,address,uint256,uint256)"
	WithdrawEventSignature = "Withdraw(address,address,address,uint256,uint256)"
	TransferEventSignature = "Transfer(address,address,uint256)"
)

var (
	DepositTopic  = crypto.Keccak256Hash([]byte(DepositEventSignature))
	WithdrawTopic = crypto.Keccak256Hash([]byte(WithdrawEventSignature))
	TransferTopic = crypto.Keccak256Hash([]byte(TransferEventSignature))
)

// EventTopics lists the topic0 hashes of every event the replay cares about.
func EventTopics() []common.Hash {
	return []common.Hash{DepositTopic, WithdrawTopic, TransferTopic}
}
