package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	log "github.com/sirupsen/logrus"
)

var (
	_ Gateway       = (*EthGateway)(nil)
	_ HealthChecker = (*EthGateway)(nil)
)

const defaultPollInterval = time.Second

// EthGateway signs and submits transactions for a single account over JSON-RPC.
type EthGateway struct {
	client       *ethclient.Client
	account      Account
	chainID      *big.Int
	transacts    *bind.TransactOpts
	pollInterval time.Duration
}

type EthGatewayConfig struct {
	RPCURL         string
	Account        Account
	PollInterval   time.Duration
	RequestTimeout time.Duration
}

func NewEthGateway(ctx context.Context, cfg EthGatewayConfig) (*EthGateway, error) {
	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	rpcClient, err := rpc.DialOptions(ctx, cfg.RPCURL, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	cli := ethclient.NewClient(rpcClient)

	chainID, err := cli.ChainID(ctx)
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("fetch chain id: %w", err)
	}

	txOpts, err := cfg.Account.Transactor(chainID)
	if err != nil {
		cli.Close()
		return nil, err
	}
	txOpts.NoSend = false
	txOpts.GasPrice = nil
	txOpts.Nonce = nil

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	log.WithFields(log.Fields{
		"chain_id": chainID.String(),
		"address":  cfg.Account.Address().Hex(),
	}).Debug("Connected to RPC endpoint")

	return &EthGateway{
		client:       cli,
		account:      cfg.Account,
		chainID:      chainID,
		transacts:    txOpts,
		pollInterval: poll,
	}, nil
}

func (g *EthGateway) Address() common.Address {
	return g.account.Address()
}

func (g *EthGateway) ChainID() *big.Int {
	return new(big.Int).Set(g.chainID)
}

func (g *EthGateway) Balance(ctx context.Context) (*big.Int, error) {
	return g.client.BalanceAt(ctx, g.account.Address(), nil)
}

// Call runs a read-only call from the operator address. A nil block means latest.
func (g *EthGateway) Call(ctx context.Context, to common.Address, data []byte, block *big.Int) ([]byte, error) {
	msg := ethereum.CallMsg{
		From: g.account.Address(),
		To:   &to,
		Data: data,
	}
	return g.client.CallContract(ctx, msg, block)
}

// SubmitAndWait sends the transaction with the given gas ceiling and blocks until it is
// included. A mined-but-reverted transaction is returned with a nil error; callers check
// the receipt status.
func (g *EthGateway) SubmitAndWait(ctx context.Context, req TxRequest) (*types.Receipt, error) {
	if req.GasLimit == 0 {
		return nil, errors.New("gas limit is required")
	}

	opts := *g.transacts
	opts.Context = ctx
	opts.GasLimit = req.GasLimit
	opts.Value = req.Value
	if opts.Value == nil {
		opts.Value = new(big.Int)
	}

	bound := bind.NewBoundContract(req.To, abi.ABI{}, g.client, g.client, g.client)
	tx, err := bound.RawTransact(&opts, req.Data)
	if err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}

	log.WithField("tx", tx.Hash().Hex()).Debug("Transaction sent")

	receipt, err := waitForReceipt(ctx, g.client, tx.Hash(), g.pollInterval)
	if err != nil {
		return nil, fmt.Errorf("wait for tx %s: %w", tx.Hash().Hex(), err)
	}
	return receipt, nil
}

func (g *EthGateway) Ping(ctx context.Context) error {
	if g.client == nil {
		return fmt.Errorf("rpc client not configured")
	}
	_, err := g.client.BlockNumber(ctx)
	return err
}

func (g *EthGateway) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

type receiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// waitForReceipt polls until the transaction is mined or the context is done.
func waitForReceipt(ctx context.Context, client receiptReader, hash common.Hash, interval time.Duration) (*types.Receipt, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := client.TransactionReceipt(ctx, hash)
		if receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
