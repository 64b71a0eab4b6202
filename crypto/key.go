package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"

	cmtos "github.com/cometbft/cometbft/libs/os"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Key is a secp256k1 account key stored as a hex file.
type Key struct {
	privateKey *ecdsa.PrivateKey
}

func GenerateKey() (*Key, error) {
	priv, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Key{privateKey: priv}, nil
}

func NewKey(priv *ecdsa.PrivateKey) *Key {
	return &Key{privateKey: priv}
}

func LoadKeyFile(keyFilePath string) (*Key, error) {
	priv, err := ethcrypto.LoadECDSA(keyFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading key from %v: %w", keyFilePath, err)
	}
	return &Key{privateKey: priv}, nil
}

// LoadOrGenKeyFile loads the key at path, creating a new one when the file is absent.
func LoadOrGenKeyFile(keyFilePath string) (*Key, error) {
	if cmtos.FileExists(keyFilePath) {
		return LoadKeyFile(keyFilePath)
	}
	k, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	if err = k.Save(keyFilePath); err != nil {
		return nil, err
	}
	return k, nil
}

func (k *Key) Save(keyFilePath string) error {
	if err := cmtos.EnsureDir(filepath.Dir(keyFilePath), 0o700); err != nil {
		return err
	}
	if err := ethcrypto.SaveECDSA(keyFilePath, k.privateKey); err != nil {
		return err
	}
	return os.Chmod(keyFilePath, 0o600)
}

func (k *Key) PrivateKey() *ecdsa.PrivateKey {
	return k.privateKey
}

func (k *Key) PublicKey() []byte {
	return ethcrypto.FromECDSAPub(&k.privateKey.PublicKey)
}

func (k *Key) Address() common.Address {
	return ethcrypto.PubkeyToAddress(k.privateKey.PublicKey)
}

func (k *Key) Sign(hash []byte) ([]byte, error) {
	return ethcrypto.Sign(hash, k.privateKey)
}
