package dex

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"vaultScope/internal/rpcbatch"
)

var errCall = errors.New("execution reverted")

func ok(values ...interface{}) rpcbatch.Result {
	return rpcbatch.Result{Values: values}
}

func failed() rpcbatch.Result {
	return rpcbatch.Result{Err: errCall}
}

func bytes32(s string) [32]byte {
	var out [32]byte
	copy(out[:], s)
	return out
}

func TestTokenMetaCallsOrder(t *testing.T) {
	token := common.HexToAddress("0x0000000000000000000000000000000000000007")
	calls, err := TokenMetaCalls(token)
	if err != nil {
		t.Fatalf("calls: %v", err)
	}
	want := []string{"decimals", "symbol", "symbol_bytes32"}
	if len(calls) != len(want) {
		t.Fatalf("expected %d calls, got %d", len(want), len(calls))
	}
	for i, c := range calls {
		if c.Label != want[i] || c.Target != token {
			t.Fatalf("call %d: got %s -> %s", i, c.Label, c.Target.Hex())
		}
	}
	if string(calls[1].Data[:4]) != string(calls[2].Data[:4]) {
		t.Fatalf("both symbol reads use the same selector")
	}
}

func TestParseTokenMeta(t *testing.T) {
	token := common.HexToAddress("0x0000000000000000000000000000000000000007")
	cases := []struct {
		name    string
		results []rpcbatch.Result
		symbol  string
		wantErr bool
	}{
		{"string symbol", []rpcbatch.Result{ok(uint8(6)), ok("USDC"), failed()}, "USDC", false},
		{"bytes32 fallback", []rpcbatch.Result{ok(uint8(18)), failed(), ok(bytes32("MKR"))}, "MKR", false},
		{"unprintable bytes32", []rpcbatch.Result{ok(uint8(18)), failed(), ok(bytes32("\x01\x02"))}, "", false},
		{"no symbol", []rpcbatch.Result{ok(uint8(18)), failed(), failed()}, "", false},
		{"decimals failed", []rpcbatch.Result{failed(), ok("USDC"), failed()}, "", true},
		{"short results", []rpcbatch.Result{ok(uint8(18))}, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			meta, err := ParseTokenMeta(token, tc.results)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if meta.Address != token || meta.Symbol != tc.symbol {
				t.Fatalf("unexpected meta %+v", meta)
			}
		})
	}
}

func TestPoolMetaCallsAndParse(t *testing.T) {
	pool := common.HexToAddress("0x0000000000000000000000000000000000000004")
	calls, err := PoolMetaCalls(pool)
	if err != nil {
		t.Fatalf("calls: %v", err)
	}
	labels := []string{"token0", "token1", "fee", "tick_spacing"}
	for i, c := range calls {
		if c.Label != labels[i] || c.Target != pool {
			t.Fatalf("call %d: got %s", i, c.Label)
		}
	}

	token0 := common.HexToAddress("0x0000000000000000000000000000000000000007")
	token1 := common.HexToAddress("0x0000000000000000000000000000000000000008")
	meta, err := ParsePoolMeta(pool, []rpcbatch.Result{ok(token0), ok(token1), ok(big.NewInt(500)), ok(big.NewInt(10))})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if meta.Token0 != token0 || meta.Token1 != token1 || meta.Fee != 500 || meta.TickSpacing != 10 {
		t.Fatalf("unexpected meta %+v", meta)
	}

	if _, err := ParsePoolMeta(pool, []rpcbatch.Result{ok(token0), ok(token1), failed(), ok(big.NewInt(10))}); !errors.Is(err, errCall) {
		t.Fatalf("expected the failed read to surface, got %v", err)
	}
}

func TestSlot0Call(t *testing.T) {
	pool := common.HexToAddress("0x0000000000000000000000000000000000000004")
	call, err := Slot0Call(pool)
	if err != nil {
		t.Fatalf("slot0 call: %v", err)
	}
	if call.Target != pool || len(call.Data) != 4 {
		t.Fatalf("unexpected call %+v", call)
	}

	price, err := ParseSlot0([]interface{}{big.NewInt(1 << 40), big.NewInt(-887)})
	if err != nil {
		t.Fatalf("parse slot0: %v", err)
	}
	if price.Tick != -887 || price.SqrtPriceX96.Cmp(big.NewInt(1<<40)) != 0 {
		t.Fatalf("unexpected price %+v", price)
	}
	if _, err := ParseSlot0([]interface{}{big.NewInt(1)}); err == nil {
		t.Fatalf("expected short slot0 error")
	}
}
