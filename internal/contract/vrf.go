package contract

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// VRF contract errors
var (
	ErrInvalidEntryCount = errors.New("invalid entry count")
)

// VRFCoordinatorABI is the ABI of the randomness coordinator smart contract.
// This matches the Solidity contract interface:
//
//	function requestRandomness(uint256 raffleId, uint256 entryCount) external returns (uint256 requestId);
//	event RandomnessRequested(uint256 indexed requestId, uint256 indexed raffleId);
//	event RandomnessFulfilled(uint256 indexed requestId, uint256 randomness);
const VRFCoordinatorABI = `[
	{
		"type": "function",
		"name": "requestRandomness",
		"inputs": [
			{"name": "raffleId", "type": "uint256"},
			{"name": "entryCount", "type": "uint256"}
		],
		"outputs": [
			{"name": "requestId", "type": "uint256"}
		],
		"stateMutability": "nonpayable"
	},
	{
		"type": "event",
		"name": "RandomnessRequested",
		"inputs": [
			{"name": "requestId", "type": "uint256", "indexed": true},
			{"name": "raffleId", "type": "uint256", "indexed": true}
		]
	},
	{
		"type": "event",
		"name": "RandomnessFulfilled",
		"inputs": [
			{"name": "requestId", "type": "uint256", "indexed": true},
			{"name": "randomness", "type": "uint256", "indexed": false}
		]
	}
]`

// RandomnessFulfilledEvent represents the RandomnessFulfilled event.
type RandomnessFulfilledEvent struct {
	RequestID  *big.Int `json:"request_id"`
	Randomness *big.Int `json:"randomness"`
	Raw        types.Log
}

// VRFCoordinatorContract provides methods to interact with the randomness coordinator.
type VRFCoordinatorContract struct {
	address common.Address
	abi     abi.ABI
	caller  bind.ContractCaller
	backend bind.ContractBackend
}

// NewVRFCoordinatorContract creates a new coordinator contract instance.
func NewVRFCoordinatorContract(address common.Address, backend bind.ContractBackend) (*VRFCoordinatorContract, error) {
	parsed, err := abi.JSON(strings.NewReader(VRFCoordinatorABI))
	if err != nil {
		return nil, err
	}

	return &VRFCoordinatorContract{
		address: address,
		abi:     parsed,
		backend: backend,
		caller:  backend,
	}, nil
}

// Address returns the contract address.
func (c *VRFCoordinatorContract) Address() common.Address {
	return c.address
}

// PackRequestRandomness packs the requestRandomness function call data.
func (c *VRFCoordinatorContract) PackRequestRandomness(raffleID, entryCount *big.Int) ([]byte, error) {
	if entryCount == nil || entryCount.Sign() <= 0 {
		return nil, ErrInvalidEntryCount
	}
	return c.abi.Pack("requestRandomness", raffleID, entryCount)
}

// SimulateRequestRandomness performs an eth_call to obtain the request id
// the coordinator will assign to the next request from this sender.
func (c *VRFCoordinatorContract) SimulateRequestRandomness(ctx context.Context, from common.Address, raffleID, entryCount *big.Int) (*big.Int, error) {
	data, err := c.PackRequestRandomness(raffleID, entryCount)
	if err != nil {
		return nil, err
	}

	msg := ethereum.CallMsg{
		From: from,
		To:   &c.address,
		Data: data,
	}

	result, err := c.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, err
	}

	var requestID *big.Int
	err = c.abi.UnpackIntoInterface(&requestID, "requestRandomness", result)
	if err != nil {
		return nil, err
	}

	return requestID, nil
}

// ParseRandomnessFulfilled parses a RandomnessFulfilled event from a log.
func (c *VRFCoordinatorContract) ParseRandomnessFulfilled(log types.Log) (*RandomnessFulfilledEvent, error) {
	event := &RandomnessFulfilledEvent{}
	event.Raw = log

	// Parse indexed fields from topics
	if len(log.Topics) < 2 {
		return nil, errors.New("not enough topics for RandomnessFulfilled event")
	}
	event.RequestID = new(big.Int).SetBytes(log.Topics[1].Bytes())

	// Parse non-indexed fields from data
	if len(log.Data) >= 32 {
		event.Randomness = new(big.Int).SetBytes(log.Data[:32])
	}

	return event, nil
}

// RandomnessFulfilledTopic returns the topic for RandomnessFulfilled events.
func (c *VRFCoordinatorContract) RandomnessFulfilledTopic() common.Hash {
	return c.abi.Events["RandomnessFulfilled"].ID
}

// RandomnessRequestedTopic returns the topic for RandomnessRequested events.
func (c *VRFCoordinatorContract) RandomnessRequestedTopic() common.Hash {
	return c.abi.Events["RandomnessRequested"].ID
}
