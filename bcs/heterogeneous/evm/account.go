package evm

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/lib/utils"
)

// newAccount encrypts privKey into a keystore json
func newAccount(privKey, password string) (*def.Account, *ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(utils.TrimHexPrefix(privKey))
	if err != nil {
		return nil, nil, def.ErrParameter.More("private key: %v", err)
	}
	ks := &keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}
	encrypted, err := keystore.EncryptKey(ks, password, keystore.LightScryptN, keystore.LightScryptP)
	if err != nil {
		return nil, nil, def.ErrInternal.More("encrypt key: %v", err)
	}
	acc := &def.Account{
		Address:      ks.Address.Hex(),
		PubKey:       utils.F(crypto.CompressPubkey(&key.PublicKey)),
		EncryptedKey: encrypted,
	}
	return acc, key, nil
}

// openAccount decrypts the keystore json of acc
func openAccount(acc *def.Account, password string) (*ecdsa.PrivateKey, error) {
	if acc == nil || len(acc.EncryptedKey) == 0 {
		return nil, def.ErrAccountNotFound
	}
	ks, err := keystore.DecryptKey(acc.EncryptedKey, password)
	if err != nil {
		return nil, def.ErrParameter.More("decrypt key: %v", err)
	}
	if ks.Address.Hex() != acc.Address {
		return nil, def.ErrParameter.More("key address %s mismatch account %s", ks.Address.Hex(), acc.Address)
	}
	return ks.PrivateKey, nil
}
