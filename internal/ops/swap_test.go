package ops

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"vaultScope/internal/dex"
)

func TestSwapWithExplicitMinOut(t *testing.T) {
	svc, _, fake := newTestService(t)
	fake.Return(vaultAddr, svc.vault, "dexRouter", routerAddr)

	plan, err := svc.Swap(context.Background(), SwapRequest{
		Vault:    vaultAddr,
		Pool:     poolAddr,
		TokenIn:  wethAddr,
		AmountIn: decimal.RequireFromString("0.25"),
		MinOut:   dec("490.5"),
	})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if plan.TokenOut.Address != usdcAddr || plan.QuotedOut != nil {
		t.Fatalf("unexpected plan %+v", plan)
	}
	vals := unpack(t, svc.vault, "swapExactIn", plan.Request)
	if vals[0].(common.Address) != routerAddr {
		t.Fatalf("expected vault router, got %s", vals[0].(common.Address).Hex())
	}
	if vals[3].(*big.Int).Int64() != 500 {
		t.Fatalf("expected pool fee, got %s", vals[3])
	}
	if vals[4].(*big.Int).Cmp(big.NewInt(250_000_000_000_000_000)) != 0 {
		t.Fatalf("expected 2.5e17 in, got %s", vals[4])
	}
	if vals[5].(*big.Int).Cmp(big.NewInt(490_500_000)) != 0 {
		t.Fatalf("expected 490500000 min out, got %s", vals[5])
	}
}

func TestSwapMinOutFromQuote(t *testing.T) {
	svc, _, fake := newTestService(t)
	var quoted dex.QuoteParams
	fake.Handle(quoterAddr, svc.quoter, "quoteExactInputSingle", func(_ common.Address, args []interface{}) ([]interface{}, error) {
		quoted = *abiConvert[dex.QuoteParams](args[0])
		return []interface{}{big.NewInt(50_000_000_000_000_000), big.NewInt(1), uint32(2), big.NewInt(90_000)}, nil
	})

	plan, err := svc.Swap(context.Background(), SwapRequest{
		Vault:       vaultAddr,
		Pool:        poolAddr,
		Router:      routerAddr,
		Quoter:      quoterAddr,
		TokenIn:     usdcAddr,
		AmountIn:    decimal.NewFromInt(100),
		SlippageBps: 50,
	})
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if quoted.TokenIn != usdcAddr || quoted.TokenOut != wethAddr || quoted.AmountIn.Int64() != 100_000_000 {
		t.Fatalf("unexpected quote params %+v", quoted)
	}
	if plan.QuotedOut.Cmp(big.NewInt(50_000_000_000_000_000)) != 0 {
		t.Fatalf("unexpected quote %s", plan.QuotedOut)
	}
	if plan.MinOut.Cmp(big.NewInt(49_750_000_000_000_000)) != 0 {
		t.Fatalf("expected 0.5%% below quote, got %s", plan.MinOut)
	}
}

func TestSwapRejections(t *testing.T) {
	svc, pools, fake := newTestService(t)
	base := SwapRequest{Vault: vaultAddr, Pool: poolAddr, TokenIn: wethAddr, AmountIn: decimal.NewFromInt(1), MinOut: dec("0")}

	noMin := base
	noMin.MinOut = nil
	tooMuch := base
	tooMuch.SlippageBps = 10_001
	zero := base
	zero.AmountIn = decimal.Zero
	for i, req := range []SwapRequest{noMin, tooMuch, zero} {
		if _, err := svc.Swap(context.Background(), req); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("case %d: expected ErrInvalidAmount, got %v", i, err)
		}
	}
	if pools.reads != 0 {
		t.Fatalf("expected no pool reads, got %d", pools.reads)
	}

	fake.Return(vaultAddr, svc.vault, "dexRouter", common.Address{})
	if _, err := svc.Swap(context.Background(), base); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported without router, got %v", err)
	}

	fake.Revert(quoterAddr, svc.quoter, "quoteExactInputSingle")
	quote := base
	quote.Router, quote.MinOut, quote.Quoter = routerAddr, nil, quoterAddr
	if _, err := svc.Swap(context.Background(), quote); err == nil {
		t.Fatalf("expected quote failure to surface")
	}
}

func TestEthUSDHint(t *testing.T) {
	svc, _, _ := newTestService(t)
	lo, hi := decimal.NewFromInt(1990), decimal.NewFromInt(2010)
	for _, pool := range []common.Address{poolAddr, flipPool} {
		got, err := svc.EthUSDHint(context.Background(), pool)
		if err != nil {
			t.Fatalf("hint %s: %v", pool.Hex(), err)
		}
		if got.LessThan(lo) || got.GreaterThan(hi) {
			t.Fatalf("expected about 2000 from %s, got %s", pool.Hex(), got)
		}
	}
}
