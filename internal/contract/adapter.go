package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/windfall-labs/windfall-raffle/pkg/logger"
)

// TxSender submits packed calldata to the chain and waits for inclusion.
// The implementation owns key management, nonce tracking and gas pricing.
type TxSender interface {
	SendTx(ctx context.Context, to common.Address, data []byte) (txHash string, err error)
}

// tokenDecimals is the fixed scale of the payment token.
const tokenDecimals = 18

var errBadTokenID = errors.New("token id is not a decimal uint256")

func parseTokenID(s string) (*big.Int, error) {
	id, ok := new(big.Int).SetString(s, 10)
	if !ok || id.Sign() < 0 {
		return nil, errBadTokenID
	}
	return id, nil
}

// toWei converts a decimal token amount to its integer chain representation.
func toWei(amount decimal.Decimal) *big.Int {
	return amount.Shift(tokenDecimals).BigInt()
}

// EscrowAdapter drives the escrow contract for collateral custody and payouts.
type EscrowAdapter struct {
	escrow *EscrowContract
	sender TxSender
}

// NewEscrowAdapter creates an escrow adapter.
func NewEscrowAdapter(escrow *EscrowContract, sender TxSender) *EscrowAdapter {
	return &EscrowAdapter{
		escrow: escrow,
		sender: sender,
	}
}

// TransferInto moves the collateral from the owner into escrow.
func (a *EscrowAdapter) TransferInto(ctx context.Context, owner, collateral, tokenID string) error {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return err
	}
	data, err := a.escrow.PackTransferIntoEscrow(common.HexToAddress(owner), common.HexToAddress(collateral), id)
	if err != nil {
		return err
	}
	return a.send(ctx, "transferIntoEscrow", data)
}

// ReleaseTo releases the escrowed collateral to the recipient.
func (a *EscrowAdapter) ReleaseTo(ctx context.Context, recipient, collateral, tokenID string) error {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return err
	}
	data, err := a.escrow.PackReleaseTo(common.HexToAddress(recipient), common.HexToAddress(collateral), id)
	if err != nil {
		return err
	}
	return a.send(ctx, "releaseTo", data)
}

// RecoverTo returns the escrowed collateral via the recovery path.
func (a *EscrowAdapter) RecoverTo(ctx context.Context, recipient, collateral, tokenID string) error {
	id, err := parseTokenID(tokenID)
	if err != nil {
		return err
	}
	data, err := a.escrow.PackRecoverTo(common.HexToAddress(recipient), common.HexToAddress(collateral), id)
	if err != nil {
		return err
	}
	return a.send(ctx, "recoverTo", data)
}

// Pay transfers funds held by the escrow contract to the recipient.
func (a *EscrowAdapter) Pay(ctx context.Context, recipient string, amount decimal.Decimal) error {
	data, err := a.escrow.PackPay(common.HexToAddress(recipient), toWei(amount))
	if err != nil {
		return err
	}
	return a.send(ctx, "pay", data)
}

func (a *EscrowAdapter) send(ctx context.Context, method string, data []byte) error {
	txHash, err := a.sender.SendTx(ctx, a.escrow.Address(), data)
	if err != nil {
		return fmt.Errorf("send %s tx: %w", method, err)
	}
	logger.Info("escrow tx sent", "method", method, "tx_hash", txHash)
	return nil
}

// VRFAdapter drives the randomness coordinator contract.
type VRFAdapter struct {
	coordinator *VRFCoordinatorContract
	sender      TxSender
	from        common.Address
}

// NewVRFAdapter creates a randomness oracle adapter.
func NewVRFAdapter(coordinator *VRFCoordinatorContract, sender TxSender, from common.Address) *VRFAdapter {
	return &VRFAdapter{
		coordinator: coordinator,
		sender:      sender,
		from:        from,
	}
}

// RequestRandom issues an on-chain randomness request and returns the
// coordinator-assigned request id. The id is obtained by simulating the
// call first, then submitting the same calldata as a transaction.
func (a *VRFAdapter) RequestRandom(ctx context.Context, raffleID int64, entryCount int64) (string, error) {
	rid := big.NewInt(raffleID)
	count := big.NewInt(entryCount)

	requestID, err := a.coordinator.SimulateRequestRandomness(ctx, a.from, rid, count)
	if err != nil {
		return "", fmt.Errorf("simulate randomness request: %w", err)
	}

	data, err := a.coordinator.PackRequestRandomness(rid, count)
	if err != nil {
		return "", err
	}

	txHash, err := a.sender.SendTx(ctx, a.coordinator.Address(), data)
	if err != nil {
		return "", fmt.Errorf("send randomness request tx: %w", err)
	}

	logger.Info("randomness request tx sent",
		"raffle_id", raffleID,
		"request_id", requestID.String(),
		"tx_hash", txHash)
	return requestID.String(), nil
}
