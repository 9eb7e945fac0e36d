package chain

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Account is the operator identity. It is built once from an already resolved key.
type Account struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewAccount(privateKeyHex string) (Account, error) {
	if strings.TrimSpace(privateKeyHex) == "" {
		return Account{}, errors.New("private key is required")
	}
	key, err := parsePrivateKey(privateKeyHex)
	if err != nil {
		return Account{}, err
	}
	return Account{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

func (a Account) Address() common.Address {
	return a.address
}

// Transactor returns fresh signing options bound to chainID.
func (a Account) Transactor(chainID *big.Int) (*bind.TransactOpts, error) {
	if a.key == nil {
		return nil, errors.New("account has no signing key")
	}
	opts, err := bind.NewKeyedTransactorWithChainID(a.key, chainID)
	if err != nil {
		return nil, fmt.Errorf("transactor: %w", err)
	}
	return opts, nil
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}
