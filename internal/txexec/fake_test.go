package txexec

import (
	"context"
	"encoding/hex"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"vaultScope/internal/model"
)

type fakeBackend struct {
	mu          sync.Mutex
	chainID     *big.Int
	gasPrice    *big.Int
	estimate    uint64
	estimateErr error
	status      uint64
	gasUsed     uint64
	effective   *big.Int
	noReceipt   bool
	sent        []*types.Transaction
	nonceDelay  time.Duration
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID:   big.NewInt(8453),
		gasPrice:  big.NewInt(1_000_000_000),
		estimate:  100_000,
		status:    types.ReceiptStatusSuccessful,
		gasUsed:   80_000,
		effective: big.NewInt(900_000_000),
	}
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	n := uint64(len(f.sent))
	delay := f.nonceDelay
	f.mu.Unlock()
	time.Sleep(delay)
	return n, nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return f.estimate, nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return f.gasPrice, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noReceipt {
		return nil, ethereum.NotFound
	}
	for _, tx := range f.sent {
		if tx.Hash() == hash {
			r := &types.Receipt{
				Status:            f.status,
				TxHash:            hash,
				GasUsed:           f.gasUsed,
				EffectiveGasPrice: f.effective,
				BlockNumber:       big.NewInt(100),
			}
			if tx.To() == nil {
				r.ContractAddress = common.HexToAddress("0x00000000000000000000000000000000c0ffee00")
			}
			return r, nil
		}
	}
	return nil, ethereum.NotFound
}

func (f *fakeBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeBackend) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type memRecorder struct {
	mu       sync.Mutex
	outcomes []model.TransactionOutcome
	err      error
}

func (m *memRecorder) RecordOutcome(_ context.Context, o model.TransactionOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, o)
	return m.err
}

func (m *memRecorder) last() model.TransactionOutcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcomes[len(m.outcomes)-1]
}

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := NewSigner("0x" + hex.EncodeToString(crypto.FromECDSA(key)))
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return signer
}

