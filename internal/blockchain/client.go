// Package blockchain 提供链上交易提交客户端
package blockchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/windfall-labs/windfall-raffle/pkg/logger"
)

var (
	ErrMissingPrivateKey = errors.New("private key not configured")
)

// Client 链上交易客户端
// 持有服务方私钥，负责 nonce 管理、签名和交易提交。
type Client struct {
	chainID    int64
	privateKey *ecdsa.PrivateKey
	address    common.Address
	eth        *ethclient.Client

	// 发送串行化，避免并发提交打乱 nonce
	mu sync.Mutex
}

// ClientConfig 客户端配置
type ClientConfig struct {
	RPCURL     string
	ChainID    int64
	PrivateKey string
}

// NewClient 创建链上交易客户端
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg.PrivateKey == "" {
		return nil, ErrMissingPrivateKey
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	eth, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	c := &Client{
		chainID:    cfg.ChainID,
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
		eth:        eth,
	}

	logger.Info("blockchain client initialized",
		"rpc_url", cfg.RPCURL,
		"chain_id", cfg.ChainID,
		"sender", c.address.Hex(),
	)
	return c, nil
}

// Address 返回签名地址
func (c *Client) Address() common.Address {
	return c.address
}

// Backend 返回底层以太坊客户端 (用于合约 view 调用和事件订阅)
func (c *Client) Backend() *ethclient.Client {
	return c.eth
}

// SendTx 构造、签名并提交交易，返回交易哈希
func (c *Client) SendTx(ctx context.Context, to common.Address, data []byte) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	nonce, err := c.eth.PendingNonceAt(ctx, c.address)
	if err != nil {
		return "", fmt.Errorf("pending nonce: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: c.address,
		To:   &to,
		Data: data,
	})
	if err != nil {
		return "", fmt.Errorf("estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signer := types.NewEIP155Signer(big.NewInt(c.chainID))
	signed, err := types.SignTx(tx, signer, c.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign tx: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("send tx: %w", err)
	}

	logger.Debug("transaction submitted",
		"tx_hash", signed.Hash().Hex(),
		"to", to.Hex(),
		"nonce", nonce,
	)
	return signed.Hash().Hex(), nil
}

// Close 关闭客户端连接
func (c *Client) Close() {
	if c.eth != nil {
		c.eth.Close()
	}
}
