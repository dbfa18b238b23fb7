// Package txexec turns call requests into signed, budget-checked
// transactions and classifies their outcome.
package txexec

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vaultScope/internal/chain"
	"vaultScope/internal/metrics"
	"vaultScope/internal/model"
)

const DefaultWaitTimeout = 3 * time.Minute

// Backend is the chain access used for submission. chain.Client implements it.
type Backend interface {
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// Recorder persists outcomes. storage journals implement it.
type Recorder interface {
	RecordOutcome(ctx context.Context, outcome model.TransactionOutcome) error
}

// Config tunes pre-sign reads and confirmation waits.
type Config struct {
	MaxRetries   int
	RetryBackoff time.Duration
	WaitTimeout  time.Duration
}

// Options are the per-submission choices.
type Options struct {
	Strategy   GasStrategy
	Wait       bool
	MaxGasUSD  *decimal.Decimal
	EthUSDHint *decimal.Decimal
}

// Engine submits transactions for one signer.
type Engine struct {
	backend  Backend
	signer   *Signer
	cfg      Config
	recorder Recorder
	metrics  *metrics.Metrics
	logger   *zap.Logger

	chainMu sync.Mutex
	chainID *big.Int
}

func NewEngine(backend Backend, signer *Signer, cfg Config, recorder Recorder, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	return &Engine{backend: backend, signer: signer, cfg: cfg, recorder: recorder, metrics: m, logger: logger}
}

// From returns the signing address, or the zero address without a signer.
func (e *Engine) From() common.Address {
	if e.signer == nil {
		return common.Address{}
	}
	return e.signer.Address()
}

func (e *Engine) loadChainID(ctx context.Context) (*big.Int, error) {
	e.chainMu.Lock()
	defer e.chainMu.Unlock()
	if e.chainID != nil {
		return e.chainID, nil
	}

	err := chain.WithRetry(ctx, e.cfg.MaxRetries, e.cfg.RetryBackoff, func(ctx context.Context) error {
		id, err := e.backend.ChainID(ctx)
		if err != nil {
			return err
		}
		e.chainID = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	return e.chainID, nil
}

// Deploy submits a contract creation with bytecode followed by packed
// constructor arguments.
func (e *Engine) Deploy(ctx context.Context, label string, bytecode []byte, opts Options) (model.TransactionOutcome, error) {
	return e.Submit(ctx, model.CallRequest{Label: label, Data: bytecode}, opts)
}

// Submit runs a request through estimation, budget check, signing and
// broadcast, then waits for the receipt when opts.Wait is set. The
// returned outcome is valid even when an error is returned.
func (e *Engine) Submit(ctx context.Context, req model.CallRequest, opts Options) (model.TransactionOutcome, error) {
	outcome := model.TransactionOutcome{
		AttemptID:   uuid.NewString(),
		Label:       req.Label,
		To:          req.To,
		SubmittedAt: time.Now().UTC(),
	}
	if e.signer == nil {
		return outcome, ErrNoSigner
	}
	if req.IsDeploy() && len(req.Data) == 0 {
		return outcome, fmt.Errorf("%w: deployment without bytecode", ErrInvalidCall)
	}
	outcome.From = e.signer.Address()

	chainID, err := e.loadChainID(ctx)
	if err != nil {
		return outcome, err
	}
	outcome.ChainID = chainID.Uint64()

	tx, err := e.broadcast(ctx, chainID, req, opts, &outcome)
	if err != nil {
		e.finish(ctx, outcome)
		return outcome, err
	}
	if !opts.Wait {
		e.finish(ctx, outcome)
		return outcome, nil
	}

	err = e.wait(ctx, tx, opts, &outcome)
	e.finish(ctx, outcome)
	return outcome, err
}

// broadcast holds the signer lock from nonce selection until the
// transaction is accepted by the node.
func (e *Engine) broadcast(ctx context.Context, chainID *big.Int, req model.CallRequest, opts Options, outcome *model.TransactionOutcome) (*types.Transaction, error) {
	from := e.signer.Address()
	mu := lockFor(from)
	mu.Lock()
	defer mu.Unlock()

	var nonce uint64
	err := chain.WithRetry(ctx, e.cfg.MaxRetries, e.cfg.RetryBackoff, func(ctx context.Context) error {
		n, err := e.backend.PendingNonceAt(ctx, from)
		if err != nil {
			return err
		}
		nonce = n
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}
	outcome.Nonce = nonce

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		gasLimit = e.estimateGas(ctx, from, req, value, opts.Strategy)
	}
	outcome.GasLimit = gasLimit

	var priceWei *big.Int
	if req.DynamicFee() {
		priceWei = req.MaxFeePerGas
	} else if req.GasPrice != nil {
		priceWei = req.GasPrice
	} else {
		err := chain.WithRetry(ctx, e.cfg.MaxRetries, e.cfg.RetryBackoff, func(ctx context.Context) error {
			p, err := e.backend.SuggestGasPrice(ctx)
			if err != nil {
				return err
			}
			priceWei = p
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("gas price: %w", err)
		}
	}
	outcome.GasPriceWei = priceWei

	budget, err := CheckBudget(gasLimit, priceWei, opts.MaxGasUSD, opts.EthUSDHint)
	outcome.Budget = budget
	if err != nil {
		e.logger.Warn("gas budget check failed",
			zap.String("label", req.Label),
			zap.Uint64("gas_limit", gasLimit),
			zap.String("gas_price_wei", priceWei.String()),
			zap.Error(err),
		)
		return nil, err
	}

	var unsigned *types.Transaction
	if req.DynamicFee() {
		unsigned = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: req.MaxPriorityFeePerGas,
			GasFeeCap: req.MaxFeePerGas,
			Gas:       gasLimit,
			To:        req.To,
			Value:     value,
			Data:      req.Data,
		})
	} else {
		unsigned = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: priceWei,
			Gas:      gasLimit,
			To:       req.To,
			Value:    value,
			Data:     req.Data,
		})
	}

	signed, err := e.signer.sign(unsigned, chainID)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	outcome.Hash = signed.Hash()

	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	outcome.Broadcasted = true
	if req.IsDeploy() {
		addr := crypto.CreateAddress(from, nonce)
		outcome.ContractAddress = &addr
	}

	e.logger.Info("tx broadcast",
		zap.String("label", req.Label),
		zap.String("hash", signed.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas_limit", gasLimit),
	)
	return signed, nil
}

func (e *Engine) estimateGas(ctx context.Context, from common.Address, req model.CallRequest, value *big.Int, strategy GasStrategy) uint64 {
	raw, err := e.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: req.To, Value: value, Data: req.Data})
	if err != nil {
		fallback := fallbackCallGas
		if req.IsDeploy() {
			fallback = fallbackDeployGas
		}
		raw = fallback
		e.logger.Warn("gas estimate failed, using fallback",
			zap.String("label", req.Label),
			zap.Uint64("gas_base", fallback),
			zap.String("strategy", string(strategy)),
			zap.Error(err),
		)
	}
	return strategy.Apply(raw)
}

func (e *Engine) wait(ctx context.Context, tx *types.Transaction, opts Options, outcome *model.TransactionOutcome) error {
	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.WaitTimeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, e.backend, tx)
	if err != nil {
		return fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}

	status := receipt.Status
	outcome.MinedStatus = &status
	outcome.GasUsed = receipt.GasUsed
	outcome.Receipt = receipt

	effective := receipt.EffectiveGasPrice
	if effective == nil || effective.Sign() == 0 {
		effective = outcome.GasPriceWei
	}
	outcome.EffectiveGasPriceWei = effective
	cost := gasCostEth(receipt.GasUsed, effective)
	outcome.CostEth = &cost
	if hint := opts.EthUSDHint; hint != nil && hint.IsPositive() {
		usd := cost.Mul(*hint)
		outcome.CostUSD = &usd
	}
	if outcome.ContractAddress != nil && receipt.ContractAddress != (common.Address{}) {
		addr := receipt.ContractAddress
		outcome.ContractAddress = &addr
	}

	e.logger.Info("tx mined",
		zap.String("label", outcome.Label),
		zap.String("hash", tx.Hash().Hex()),
		zap.Uint64("status", status),
		zap.Uint64("gas_used", receipt.GasUsed),
		zap.String("cost_eth", cost.String()),
	)

	if status != types.ReceiptStatusSuccessful {
		return &RevertedError{TxHash: tx.Hash(), Receipt: receipt, Outcome: *outcome}
	}
	return nil
}

// finish records the outcome. Journal failures are logged, not returned.
func (e *Engine) finish(ctx context.Context, outcome model.TransactionOutcome) {
	costEth := 0.0
	if outcome.CostEth != nil {
		costEth = outcome.CostEth.InexactFloat64()
	}
	e.metrics.TxOutcome(outcome.State(), costEth)

	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordOutcome(ctx, outcome); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.Warn("record outcome failed", zap.String("attempt", outcome.AttemptID), zap.Error(err))
	}
}
