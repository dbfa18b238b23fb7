package txexec

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds the private key used for submissions.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner parses a hex private key, with or without 0x prefix.
func NewSigner(hexKey string) (*Signer, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, ErrNoSigner
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

func (s *Signer) sign(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if s == nil || s.key == nil {
		return nil, errors.New("signer has no key")
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
}

// signerLocks serializes nonce selection and broadcast per account across
// every engine in the process.
var signerLocks sync.Map

func lockFor(addr common.Address) *sync.Mutex {
	mu, _ := signerLocks.LoadOrStore(addr, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
