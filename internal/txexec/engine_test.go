package txexec

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vaultScope/internal/metrics"
	"vaultScope/internal/model"
)

var target = common.HexToAddress("0x3000000000000000000000000000000000000001")

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func budgetRequest() model.CallRequest {
	to := target
	return model.CallRequest{
		Label:    "harvest",
		To:       &to,
		Data:     []byte{0x01, 0x02, 0x03, 0x04},
		GasLimit: 100_000,
		GasPrice: big.NewInt(50_000_000_000),
	}
}

func TestSubmitRejectsOverBudgetBeforeSigning(t *testing.T) {
	backend := newFakeBackend()
	rec := &memRecorder{}
	engine := NewEngine(backend, newTestSigner(t), Config{}, rec, nil, zap.NewNop())

	outcome, err := engine.Submit(context.Background(), budgetRequest(), Options{
		MaxGasUSD:  dec("10"),
		EthUSDHint: dec("3000"),
	})
	var budgetErr *BudgetExceededError
	if !errors.As(err, &budgetErr) {
		t.Fatalf("expected BudgetExceededError, got %v", err)
	}
	if budgetErr.EstimatedUSD == nil || !budgetErr.EstimatedUSD.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected estimate 15, got %v", budgetErr.EstimatedUSD)
	}
	if budgetErr.GasLimit != 100_000 || budgetErr.GasPriceWei.Cmp(big.NewInt(50_000_000_000)) != 0 {
		t.Fatalf("unexpected gas inputs: %+v", budgetErr)
	}
	if backend.sentCount() != 0 {
		t.Fatalf("nothing may be broadcast")
	}
	if outcome.Broadcasted || outcome.Hash != (common.Hash{}) || !outcome.Budget.Exceeded {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if got := rec.last().State(); got != "not_broadcast" {
		t.Fatalf("journal state = %s", got)
	}
}

func TestSubmitWithinBudgetProceeds(t *testing.T) {
	backend := newFakeBackend()
	engine := NewEngine(backend, newTestSigner(t), Config{}, nil, nil, zap.NewNop())

	outcome, err := engine.Submit(context.Background(), budgetRequest(), Options{
		MaxGasUSD:  dec("20"),
		EthUSDHint: dec("3000"),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !outcome.Broadcasted || backend.sentCount() != 1 {
		t.Fatalf("expected broadcast")
	}
	if outcome.Budget.Exceeded || !outcome.Budget.EstimatedUSD.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("unexpected budget: %+v", outcome.Budget)
	}
	if outcome.State() != "pending" {
		t.Fatalf("without wait the outcome stays pending, got %s", outcome.State())
	}
}

func TestSubmitFailsSafeWithoutPriceHint(t *testing.T) {
	backend := newFakeBackend()
	engine := NewEngine(backend, newTestSigner(t), Config{}, nil, nil, zap.NewNop())

	_, err := engine.Submit(context.Background(), budgetRequest(), Options{MaxGasUSD: dec("1000")})
	var budgetErr *BudgetExceededError
	if !errors.As(err, &budgetErr) || budgetErr.EstimatedUSD != nil {
		t.Fatalf("expected hint-less budget error, got %v", err)
	}
	if backend.sentCount() != 0 {
		t.Fatalf("nothing may be broadcast")
	}
}

func TestSubmitWaitsAndComputesCost(t *testing.T) {
	backend := newFakeBackend()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "test")
	rec := &memRecorder{}
	engine := NewEngine(backend, newTestSigner(t), Config{}, rec, m, zap.NewNop())

	to := target
	outcome, err := engine.Submit(context.Background(), model.CallRequest{Label: "stake", To: &to, Data: []byte{0xaa}}, Options{
		Strategy:   StrategyBuffered,
		Wait:       true,
		EthUSDHint: dec("2000"),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if outcome.GasLimit != 135_000 {
		t.Fatalf("buffered limit = %d, want 135000", outcome.GasLimit)
	}
	if outcome.State() != "mined_success" || outcome.GasUsed != 80_000 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	wantEth := decimal.RequireFromString("0.000072")
	if outcome.CostEth == nil || !outcome.CostEth.Equal(wantEth) {
		t.Fatalf("cost eth = %v, want %s", outcome.CostEth, wantEth)
	}
	if outcome.CostUSD == nil || !outcome.CostUSD.Equal(decimal.RequireFromString("0.144")) {
		t.Fatalf("cost usd = %v", outcome.CostUSD)
	}
	if outcome.AttemptID == "" || outcome.ChainID != 8453 {
		t.Fatalf("missing identity: %+v", outcome)
	}
	if got := testutil.ToFloat64(m.TxOutcomes.WithLabelValues("mined_success")); got != 1 {
		t.Fatalf("tx outcome metric = %v", got)
	}
	if rec.last().Hash != outcome.Hash {
		t.Fatalf("journal must hold the outcome")
	}
}

func TestSubmitSurfacesRevert(t *testing.T) {
	backend := newFakeBackend()
	backend.status = 0
	engine := NewEngine(backend, newTestSigner(t), Config{}, nil, nil, zap.NewNop())

	to := target
	outcome, err := engine.Submit(context.Background(), model.CallRequest{To: &to, Data: []byte{0x01}}, Options{Wait: true})
	var reverted *RevertedError
	if !errors.As(err, &reverted) {
		t.Fatalf("expected RevertedError, got %v", err)
	}
	if reverted.TxHash != outcome.Hash || reverted.Receipt == nil || reverted.Receipt.Status != 0 {
		t.Fatalf("revert must carry hash and receipt: %+v", reverted)
	}
	if outcome.State() != "mined_reverted" || outcome.CostEth == nil {
		t.Fatalf("gas was spent on revert: %+v", outcome)
	}
}

func TestSubmitWaitTimeoutLeavesPending(t *testing.T) {
	backend := newFakeBackend()
	backend.noReceipt = true
	engine := NewEngine(backend, newTestSigner(t), Config{WaitTimeout: 50 * time.Millisecond}, nil, nil, zap.NewNop())

	to := target
	outcome, err := engine.Submit(context.Background(), model.CallRequest{To: &to, Data: []byte{0x01}}, Options{Wait: true})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if outcome.State() != "pending" {
		t.Fatalf("state = %s", outcome.State())
	}
}

func TestSubmitFallsBackWhenEstimateFails(t *testing.T) {
	backend := newFakeBackend()
	backend.estimateErr = errors.New("execution reverted")
	engine := NewEngine(backend, newTestSigner(t), Config{}, nil, nil, zap.NewNop())

	to := target
	for _, tc := range []struct {
		strategy GasStrategy
		want     uint64
	}{
		{StrategyDefault, 300_000},
		{StrategyBuffered, 385_000},
		{StrategyAggressive, 475_000},
	} {
		outcome, err := engine.Submit(context.Background(), model.CallRequest{To: &to, Data: []byte{0x01}}, Options{Strategy: tc.strategy})
		if err != nil {
			t.Fatalf("submit %s: %v", tc.strategy, err)
		}
		if outcome.GasLimit != tc.want {
			t.Fatalf("%s: gas limit = %d, want padded fallback %d", tc.strategy, outcome.GasLimit, tc.want)
		}
	}

	deploy, err := engine.Deploy(context.Background(), "deploy", []byte{0x60, 0x80}, Options{Wait: true, Strategy: StrategyBuffered})
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if deploy.GasLimit != 635_000 {
		t.Fatalf("deploy gas limit = %d", deploy.GasLimit)
	}
	if deploy.ContractAddress == nil || *deploy.ContractAddress != common.HexToAddress("0x00000000000000000000000000000000c0ffee00") {
		t.Fatalf("unexpected contract address %v", deploy.ContractAddress)
	}
}

func TestSubmitUsesDynamicFeesWhenGiven(t *testing.T) {
	backend := newFakeBackend()
	engine := NewEngine(backend, newTestSigner(t), Config{}, nil, nil, zap.NewNop())

	to := target
	req := model.CallRequest{
		To:                   &to,
		Data:                 []byte{0x01},
		MaxFeePerGas:         big.NewInt(3_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(100_000_000),
	}
	outcome, err := engine.Submit(context.Background(), req, Options{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	tx := backend.sent[0]
	if tx.Type() != 2 || tx.GasFeeCap().Cmp(req.MaxFeePerGas) != 0 {
		t.Fatalf("expected a dynamic fee tx, got type %d", tx.Type())
	}
	if outcome.GasPriceWei.Cmp(req.MaxFeePerGas) != 0 {
		t.Fatalf("budget price must use the fee cap")
	}
}

func TestSubmitSerializesNoncesPerSigner(t *testing.T) {
	backend := newFakeBackend()
	backend.nonceDelay = 5 * time.Millisecond
	engine := NewEngine(backend, newTestSigner(t), Config{}, nil, nil, zap.NewNop())

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			to := target
			_, err := engine.Submit(context.Background(), model.CallRequest{To: &to, Data: []byte{0x01}, GasLimit: 21_000}, Options{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	seen := map[uint64]bool{}
	for _, tx := range backend.sent {
		if seen[tx.Nonce()] {
			t.Fatalf("duplicate nonce %d", tx.Nonce())
		}
		seen[tx.Nonce()] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct nonces, got %d", n, len(seen))
	}
}

func TestSubmitRequiresSigner(t *testing.T) {
	engine := NewEngine(newFakeBackend(), nil, Config{}, nil, nil, zap.NewNop())
	to := target
	if _, err := engine.Submit(context.Background(), model.CallRequest{To: &to}, Options{}); !errors.Is(err, ErrNoSigner) {
		t.Fatalf("expected ErrNoSigner, got %v", err)
	}

	engine = NewEngine(newFakeBackend(), newTestSigner(t), Config{}, nil, nil, zap.NewNop())
	if _, err := engine.Submit(context.Background(), model.CallRequest{}, Options{}); !errors.Is(err, ErrInvalidCall) {
		t.Fatalf("expected ErrInvalidCall, got %v", err)
	}
}
