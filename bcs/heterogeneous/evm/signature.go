package evm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/lib/utils"
)

var (
	tString, _    = abi.NewType("string", "", nil)
	tAddress, _   = abi.NewType("address", "", nil)
	tAddresses, _ = abi.NewType("address[]", "", nil)
	tUint256, _   = abi.NewType("uint256", "", nil)
	tUint8, _     = abi.NewType("uint8", "", nil)
	tBool, _      = abi.NewType("bool", "", nil)

	withdrawSignArgs = abi.Arguments{{Type: tString}, {Type: tAddress}, {Type: tUint256},
		{Type: tBool}, {Type: tAddress}, {Type: tUint8}}
	changeSignArgs  = abi.Arguments{{Type: tString}, {Type: tAddresses}, {Type: tAddresses}, {Type: tUint8}, {Type: tUint8}}
	upgradeSignArgs = abi.Arguments{{Type: tString}, {Type: tAddress}, {Type: tUint8}}
)

// callArgs 多签合约调用参数，Request与calldata之间的中间形式
type callArgs struct {
	method          string
	txKey           string
	to              common.Address
	amount          *big.Int
	isContractAsset bool
	erc20           common.Address
	adds            []common.Address
	removes         []common.Address
	count           uint8
	upgrade         common.Address
	signatures      []byte
}

// signingHash is the digest every manager signs for a call
func (a *callArgs) signingHash(version uint8) ([]byte, error) {
	var (
		packed []byte
		err    error
	)
	switch a.method {
	case MethodCreateOrSignWithdraw:
		packed, err = withdrawSignArgs.Pack(a.txKey, a.to, a.amount, a.isContractAsset, a.erc20, version)
	case MethodCreateOrSignManagerChange:
		packed, err = changeSignArgs.Pack(a.txKey, a.adds, a.removes, a.count, version)
	case MethodCreateOrSignUpgrade:
		packed, err = upgradeSignArgs.Pack(a.txKey, a.upgrade, version)
	default:
		return nil, def.ErrParameter.More("no signing hash for %s", a.method)
	}
	if err != nil {
		return nil, def.ErrParameter.More("pack signing args: %v", err)
	}
	return crypto.Keccak256(packed), nil
}

// RecoverSigners returns the distinct addresses that signed hash, in
// signature order. Every signature is 65 bytes with v in {0,1,27,28}.
func RecoverSigners(hash []byte, signatures []byte) ([]string, error) {
	if len(signatures) == 0 || len(signatures)%def.SignatureLength != 0 {
		return nil, def.ErrValidationFailed.More("signatures length %d", len(signatures))
	}
	seen := make(map[common.Address]bool)
	var signers []string
	for i := 0; i < len(signatures); i += def.SignatureLength {
		sig := make([]byte, def.SignatureLength)
		copy(sig, signatures[i:i+def.SignatureLength])
		if sig[64] >= 27 {
			sig[64] -= 27
		}
		pub, err := crypto.SigToPub(hash, sig)
		if err != nil {
			return nil, def.ErrValidationFailed.More("recover signature %d: %v", i/def.SignatureLength, err)
		}
		addr := crypto.PubkeyToAddress(*pub)
		if seen[addr] {
			continue
		}
		seen[addr] = true
		signers = append(signers, addr.Hex())
	}
	return signers, nil
}

// SignatureCount returns the number of 65 bytes signatures in a hex blob
func SignatureCount(sigHex string) int {
	raw := utils.DecodeHex(sigHex)
	return len(raw) / def.SignatureLength
}
