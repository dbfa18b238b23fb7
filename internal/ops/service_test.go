package ops

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"vaultScope/internal/chain/chaintest"
	"vaultScope/internal/clmath"
	"vaultScope/internal/model"
	"vaultScope/internal/rpcbatch"
)

var (
	vaultAddr  = common.HexToAddress("0x2000000000000000000000000000000000000001")
	poolAddr   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	wethAddr   = common.HexToAddress("0x2000000000000000000000000000000000000003")
	usdcAddr   = common.HexToAddress("0x2000000000000000000000000000000000000004")
	routerAddr = common.HexToAddress("0x2000000000000000000000000000000000000005")
	quoterAddr = common.HexToAddress("0x2000000000000000000000000000000000000006")
	flipPool   = common.HexToAddress("0x2000000000000000000000000000000000000007")
)

const poolTick = int32(-200310)

var (
	weth = model.TokenMeta{Address: wethAddr, Decimals: 18, Symbol: "WETH"}
	usdc = model.TokenMeta{Address: usdcAddr, Decimals: 6, Symbol: "USDC"}
)

type fakePools struct {
	infos map[common.Address]model.PoolInfo
	reads int
}

func (f *fakePools) PoolInfo(_ context.Context, pool common.Address, _ bool) (model.PoolInfo, error) {
	f.reads++
	info, ok := f.infos[pool]
	if !ok {
		return model.PoolInfo{}, errors.New("no such pool")
	}
	return info, nil
}

func (f *fakePools) IsStable(meta model.TokenMeta) bool {
	return meta.Symbol == "USDC"
}

func poolInfo(addr common.Address, t0, t1 model.TokenMeta, tick int32) model.PoolInfo {
	return model.PoolInfo{
		Meta:   model.PoolMeta{Address: addr, Token0: t0.Address, Token1: t1.Address, Fee: 500, TickSpacing: 10},
		Token0: t0,
		Token1: t1,
		Price:  model.PoolPrice{SqrtPriceX96: clmath.TickToSqrtRatio(tick), Tick: tick},
	}
}

func newTestService(t *testing.T) (*Service, *fakePools, *chaintest.FakeChain) {
	t.Helper()
	pools := &fakePools{infos: map[common.Address]model.PoolInfo{
		poolAddr: poolInfo(poolAddr, weth, usdc, poolTick),
		flipPool: poolInfo(flipPool, usdc, weth, -poolTick),
	}}
	fake := chaintest.New()
	caller := rpcbatch.NewCaller(fake, rpcbatch.Config{}, zap.NewNop(), nil)
	svc, err := NewService(pools, caller, zap.NewNop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, pools, fake
}

func unpack(t *testing.T, parsed abi.ABI, method string, req model.CallRequest) []interface{} {
	t.Helper()
	m, ok := parsed.Methods[method]
	if !ok {
		t.Fatalf("method %s not in abi", method)
	}
	if len(req.Data) < 4 || string(req.Data[:4]) != string(m.ID) {
		t.Fatalf("calldata does not start with the %s selector", method)
	}
	vals, err := m.Inputs.Unpack(req.Data[4:])
	if err != nil {
		t.Fatalf("unpack %s: %v", method, err)
	}
	return vals
}

func ptr[T any](v T) *T { return &v }

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestVaultCallsTargetVault(t *testing.T) {
	svc, _, _ := newTestService(t)
	builders := map[string]func() (model.CallRequest, error){
		"collectToVault":      func() (model.CallRequest, error) { return svc.Collect(vaultAddr) },
		"exitPositionToVault": func() (model.CallRequest, error) { return svc.Exit(vaultAddr) },
		"stake":               func() (model.CallRequest, error) { return svc.Stake(vaultAddr) },
		"unstake":             func() (model.CallRequest, error) { return svc.Unstake(vaultAddr) },
		"claimRewards":        func() (model.CallRequest, error) { return svc.ClaimRewards(vaultAddr) },
	}
	for method, build := range builders {
		req, err := build()
		if err != nil {
			t.Fatalf("%s: %v", method, err)
		}
		if req.To == nil || *req.To != vaultAddr {
			t.Fatalf("%s: expected target %s, got %v", method, vaultAddr.Hex(), req.To)
		}
		unpack(t, svc.vault, method, req)
	}
}

func TestVaultCallsRejectZeroVault(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.Collect(common.Address{}); !errors.Is(err, ErrInvalidVault) {
		t.Fatalf("expected ErrInvalidVault, got %v", err)
	}
	if _, err := svc.WithdrawAll(vaultAddr, common.Address{}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for missing recipient, got %v", err)
	}
}

func TestWithdrawAllAndAutomation(t *testing.T) {
	svc, _, _ := newTestService(t)
	to := common.HexToAddress("0x20000000000000000000000000000000000000ff")

	req, err := svc.WithdrawAll(vaultAddr, to)
	if err != nil {
		t.Fatalf("withdraw all: %v", err)
	}
	if got := unpack(t, svc.vault, "exitPositionAndWithdrawAll", req)[0].(common.Address); got != to {
		t.Fatalf("expected recipient %s, got %s", to.Hex(), got.Hex())
	}

	req, err = svc.SetAutomationEnabled(vaultAddr, true)
	if err != nil {
		t.Fatalf("set enabled: %v", err)
	}
	if !unpack(t, svc.vault, "setAutomationEnabled", req)[0].(bool) {
		t.Fatalf("expected enabled=true")
	}

	req, err = svc.SetAutomationConfig(vaultAddr, AutomationConfig{CooldownSec: 900, MaxSlippageBps: 50, AllowSwap: true})
	if err != nil {
		t.Fatalf("set config: %v", err)
	}
	vals := unpack(t, svc.vault, "setAutomationConfig", req)
	if vals[0].(uint32) != 900 || vals[1].(uint16) != 50 || !vals[2].(bool) {
		t.Fatalf("unexpected config args %v", vals)
	}

	if _, err := svc.SetAutomationConfig(vaultAddr, AutomationConfig{MaxSlippageBps: 10_001}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestToRawTruncates(t *testing.T) {
	got := ToRaw(decimal.RequireFromString("1.2345678"), 6)
	if got.Cmp(big.NewInt(1_234_567)) != 0 {
		t.Fatalf("expected 1234567, got %s", got)
	}
	if _, err := positiveRaw(decimal.RequireFromString("0.0000001"), 6, "amount"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected dust amount to be rejected, got %v", err)
	}
}

func TestDeployAppendsConstructorArgs(t *testing.T) {
	const ctorABI = `[{"type":"constructor","inputs":[{"name":"owner","type":"address"},{"name":"cooldown","type":"uint32"},{"name":"cap","type":"uint256"},{"name":"tick","type":"int24"}]}]`
	code, err := DecodeBytecode("6080604052")
	if err != nil {
		t.Fatalf("decode bytecode: %v", err)
	}
	args, err := ParseConstructorArgs(ctorABI, []string{vaultAddr.Hex(), "600", "1000000000000000000000", "-200"})
	if err != nil {
		t.Fatalf("parse args: %v", err)
	}
	if _, ok := args[1].(uint32); !ok {
		t.Fatalf("expected uint32 cooldown, got %T", args[1])
	}
	if _, ok := args[3].(*big.Int); !ok {
		t.Fatalf("expected *big.Int for int24, got %T", args[3])
	}

	req, err := Deploy("", code, ctorABI, args...)
	if err != nil {
		t.Fatalf("deploy: %v", err)
	}
	if !req.IsDeploy() || req.Label != "deploy" {
		t.Fatalf("expected a labelled creation request, got %+v", req)
	}
	if len(req.Data) != len(code)+4*32 {
		t.Fatalf("expected bytecode plus four words, got %d bytes", len(req.Data))
	}

	parsed, _ := abi.JSON(strings.NewReader(ctorABI))
	vals, err := parsed.Constructor.Inputs.Unpack(req.Data[len(code):])
	if err != nil {
		t.Fatalf("unpack constructor: %v", err)
	}
	if vals[0].(common.Address) != vaultAddr || vals[3].(*big.Int).Int64() != -200 {
		t.Fatalf("unexpected constructor values %v", vals)
	}
}

func TestDeployRejectsBadInput(t *testing.T) {
	const ctorABI = `[{"type":"constructor","inputs":[{"name":"fee","type":"uint8"}]}]`
	if _, err := ParseConstructorArgs(ctorABI, []string{"300"}); !errors.Is(err, ErrInvalidDeploy) {
		t.Fatalf("expected overflow to be rejected, got %v", err)
	}
	if _, err := ParseConstructorArgs(ctorABI, nil); !errors.Is(err, ErrInvalidDeploy) {
		t.Fatalf("expected arity mismatch, got %v", err)
	}
	if _, err := DecodeBytecode("0x"); !errors.Is(err, ErrInvalidDeploy) {
		t.Fatalf("expected empty bytecode to be rejected, got %v", err)
	}
	if _, err := Deploy("x", []byte{0x60}, "", uint8(1)); !errors.Is(err, ErrInvalidDeploy) {
		t.Fatalf("expected args without abi to be rejected, got %v", err)
	}
}
