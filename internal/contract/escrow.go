// Package contract provides smart contract ABI bindings for the raffle platform.
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

// Escrow contract errors
var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrInvalidTokenID = errors.New("invalid token id")
)

// EscrowABI is the ABI of the collateral escrow smart contract.
// This matches the Solidity contract interface:
//
//	function transferIntoEscrow(address owner, address collateral, uint256 tokenId) external;
//	function releaseTo(address recipient, address collateral, uint256 tokenId) external;
//	function recoverTo(address recipient, address collateral, uint256 tokenId) external;
//	function pay(address recipient, uint256 amount) external;
//	event CollateralReleased(address indexed recipient, address indexed collateral, uint256 tokenId);
const EscrowABI = `[
	{
		"type": "function",
		"name": "transferIntoEscrow",
		"inputs": [
			{"name": "owner", "type": "address"},
			{"name": "collateral", "type": "address"},
			{"name": "tokenId", "type": "uint256"}
		],
		"outputs": [],
		"stateMutability": "nonpayable"
	},
	{
		"type": "function",
		"name": "releaseTo",
		"inputs": [
			{"name": "recipient", "type": "address"},
			{"name": "collateral", "type": "address"},
			{"name": "tokenId", "type": "uint256"}
		],
		"outputs": [],
		"stateMutability": "nonpayable"
	},
	{
		"type": "function",
		"name": "recoverTo",
		"inputs": [
			{"name": "recipient", "type": "address"},
			{"name": "collateral", "type": "address"},
			{"name": "tokenId", "type": "uint256"}
		],
		"outputs": [],
		"stateMutability": "nonpayable"
	},
	{
		"type": "function",
		"name": "pay",
		"inputs": [
			{"name": "recipient", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"outputs": [],
		"stateMutability": "nonpayable"
	},
	{
		"type": "function",
		"name": "escrowedBy",
		"inputs": [
			{"name": "collateral", "type": "address"},
			{"name": "tokenId", "type": "uint256"}
		],
		"outputs": [
			{"name": "owner", "type": "address"}
		],
		"stateMutability": "view"
	},
	{
		"type": "event",
		"name": "CollateralReleased",
		"inputs": [
			{"name": "recipient", "type": "address", "indexed": true},
			{"name": "collateral", "type": "address", "indexed": true},
			{"name": "tokenId", "type": "uint256", "indexed": false}
		]
	}
]`

// CollateralReleasedEvent represents the CollateralReleased event from the escrow contract.
type CollateralReleasedEvent struct {
	Recipient  common.Address `json:"recipient"`
	Collateral common.Address `json:"collateral"`
	TokenID    *big.Int       `json:"token_id"`
	Raw        types.Log
}

// EscrowContract provides methods to interact with the collateral escrow smart contract.
type EscrowContract struct {
	address common.Address
	abi     abi.ABI
	caller  bind.ContractCaller
	backend bind.ContractBackend
}

// NewEscrowContract creates a new escrow contract instance.
func NewEscrowContract(address common.Address, backend bind.ContractBackend) (*EscrowContract, error) {
	parsed, err := abi.JSON(strings.NewReader(EscrowABI))
	if err != nil {
		return nil, err
	}

	return &EscrowContract{
		address: address,
		abi:     parsed,
		backend: backend,
		caller:  backend,
	}, nil
}

// Address returns the contract address.
func (c *EscrowContract) Address() common.Address {
	return c.address
}

// ABI returns the contract ABI.
func (c *EscrowContract) ABI() abi.ABI {
	return c.abi
}

// PackTransferIntoEscrow packs the transferIntoEscrow function call data.
func (c *EscrowContract) PackTransferIntoEscrow(owner, collateral common.Address, tokenID *big.Int) ([]byte, error) {
	if tokenID == nil || tokenID.Sign() < 0 {
		return nil, ErrInvalidTokenID
	}
	return c.abi.Pack("transferIntoEscrow", owner, collateral, tokenID)
}

// PackReleaseTo packs the releaseTo function call data.
func (c *EscrowContract) PackReleaseTo(recipient, collateral common.Address, tokenID *big.Int) ([]byte, error) {
	if tokenID == nil || tokenID.Sign() < 0 {
		return nil, ErrInvalidTokenID
	}
	return c.abi.Pack("releaseTo", recipient, collateral, tokenID)
}

// PackRecoverTo packs the recoverTo function call data.
func (c *EscrowContract) PackRecoverTo(recipient, collateral common.Address, tokenID *big.Int) ([]byte, error) {
	if tokenID == nil || tokenID.Sign() < 0 {
		return nil, ErrInvalidTokenID
	}
	return c.abi.Pack("recoverTo", recipient, collateral, tokenID)
}

// PackPay packs the pay function call data.
func (c *EscrowContract) PackPay(recipient common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return c.abi.Pack("pay", recipient, amount)
}

// EscrowedBy queries the escrowed owner of a collateral token.
func (c *EscrowContract) EscrowedBy(ctx context.Context, collateral common.Address, tokenID *big.Int) (common.Address, error) {
	data, err := c.abi.Pack("escrowedBy", collateral, tokenID)
	if err != nil {
		return common.Address{}, err
	}

	msg := ethereum.CallMsg{
		To:   &c.address,
		Data: data,
	}

	result, err := c.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return common.Address{}, err
	}

	var owner common.Address
	err = c.abi.UnpackIntoInterface(&owner, "escrowedBy", result)
	if err != nil {
		return common.Address{}, err
	}

	return owner, nil
}

// EstimateGas estimates the gas required for a packed call.
func (c *EscrowContract) EstimateGas(ctx context.Context, from common.Address, data []byte) (uint64, error) {
	msg := ethereum.CallMsg{
		From: from,
		To:   &c.address,
		Data: data,
	}
	return c.backend.EstimateGas(ctx, msg)
}

// ParseCollateralReleased parses a CollateralReleased event from a log.
func (c *EscrowContract) ParseCollateralReleased(log types.Log) (*CollateralReleasedEvent, error) {
	event := &CollateralReleasedEvent{}
	event.Raw = log

	// Parse indexed fields from topics
	if len(log.Topics) < 3 {
		return nil, errors.New("not enough topics for CollateralReleased event")
	}
	event.Recipient = common.HexToAddress(log.Topics[1].Hex())
	event.Collateral = common.HexToAddress(log.Topics[2].Hex())

	// Parse non-indexed fields from data
	if len(log.Data) >= 32 {
		event.TokenID = new(big.Int).SetBytes(log.Data[:32])
	}

	return event, nil
}

// CollateralReleasedTopic returns the topic for CollateralReleased events.
func (c *EscrowContract) CollateralReleasedTopic() common.Hash {
	return c.abi.Events["CollateralReleased"].ID
}
