package framework

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// devAccountSeed derives the pre-funded development accounts. Keys are
	// keccak256("<seed>/<index>") so addresses are stable across runs.
	devAccountSeed  = "simple-storage development network"
	devAccountCount = 10
)

// Accounts is the ordered list of signing identities known to a Framework.
// On the development network it starts with the pre-funded accounts; on live
// networks it starts empty and keys are added from configuration.
type Accounts struct {
	mu   sync.Mutex
	keys []*PrivKey
}

func (a *Accounts) At(i int) (*PrivKey, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if i < 0 || i >= len(a.keys) {
		return nil, fmt.Errorf("%w: %d of %d", ErrAccountIndex, i, len(a.keys))
	}
	return a.keys[i], nil
}

// Add constructs an account from a hex private key and appends it. Adding a
// key that is already known returns the existing account.
func (a *Accounts) Add(hexKey string) (*PrivKey, error) {
	key, err := NewPrivKeyFromHex(hexKey)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, k := range a.keys {
		if k.Address() == key.Address() {
			return k, nil
		}
	}
	a.keys = append(a.keys, key)
	return key, nil
}

func (a *Accounts) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.keys)
}

func (a *Accounts) All() []*PrivKey {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*PrivKey(nil), a.keys...)
}

func devAccounts() ([]*PrivKey, error) {
	keys := make([]*PrivKey, 0, devAccountCount)
	for i := 0; i < devAccountCount; i++ {
		seed := crypto.Keccak256([]byte(fmt.Sprintf("%s/%d", devAccountSeed, i)))
		priv, err := crypto.ToECDSA(seed)
		if err != nil {
			return nil, fmt.Errorf("failed to derive development account %d: %w", i, err)
		}
		keys = append(keys, &PrivKey{Priv: priv})
	}
	return keys, nil
}
