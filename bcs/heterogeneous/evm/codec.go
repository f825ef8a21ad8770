package evm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/lib/utils"
)

// codec converts between coordination requests and multi-sig calldata
type codec struct {
	assets  *AssetRegistry
	version uint8
}

func (c *codec) argsOf(req *def.Request) (*callArgs, error) {
	if req == nil || req.NerveTxHash == "" {
		return nil, def.ErrParameter.More("empty request")
	}
	sigs := utils.DecodeHex(req.Signatures)
	if req.Signatures != "" && sigs == nil {
		return nil, def.ErrParameter.More("signatures not hex")
	}
	if sigs == nil {
		sigs = []byte{}
	}
	args := &callArgs{txKey: req.TxKey(), signatures: sigs}

	switch req.Type {
	case def.TxTypeWithdraw:
		if !common.IsHexAddress(req.ToAddress) {
			return nil, def.ErrInvalidAddress.More("withdraw to %s", req.ToAddress)
		}
		if req.Value == nil || req.Value.Sign() <= 0 {
			return nil, def.ErrParameter.More("withdraw value must be positive")
		}
		asset, ok := c.assets.ById(req.AssetId)
		if !ok {
			return nil, def.ErrAssetNotFound.More("asset %d", req.AssetId)
		}
		args.method = MethodCreateOrSignWithdraw
		args.to = common.HexToAddress(req.ToAddress)
		args.amount = new(big.Int).Set(req.Value)
		args.isContractAsset = asset.IsContractAsset()
		if args.isContractAsset {
			args.erc20 = common.HexToAddress(asset.Contract)
		}
	case def.TxTypeManagerChange, def.TxTypeRecovery:
		adds, err := toAddresses(req.AddAddresses)
		if err != nil {
			return nil, err
		}
		removes, err := toAddresses(req.RemoveAddresses)
		if err != nil {
			return nil, err
		}
		if req.OriginalMemberCount <= 0 || req.OriginalMemberCount > 255 {
			return nil, def.ErrParameter.More("original member count %d", req.OriginalMemberCount)
		}
		args.method = MethodCreateOrSignManagerChange
		args.adds = adds
		args.removes = removes
		args.count = uint8(req.OriginalMemberCount)
	case def.TxTypeContractUpgrade:
		if !common.IsHexAddress(req.NewContract) {
			return nil, def.ErrInvalidAddress.More("upgrade contract %s", req.NewContract)
		}
		args.method = MethodCreateOrSignUpgrade
		args.upgrade = common.HexToAddress(req.NewContract)
	default:
		return nil, def.ErrParameter.More("unsupported request type %s", req.Type)
	}
	return args, nil
}

func (c *codec) encode(req *def.Request) ([]byte, error) {
	args, err := c.argsOf(req)
	if err != nil {
		return nil, err
	}
	var input []byte
	switch args.method {
	case MethodCreateOrSignWithdraw:
		input, err = multiSigABI.Pack(args.method, args.txKey, args.to, args.amount,
			args.isContractAsset, args.erc20, args.signatures)
	case MethodCreateOrSignManagerChange:
		input, err = multiSigABI.Pack(args.method, args.txKey, args.adds, args.removes,
			args.count, args.signatures)
	case MethodCreateOrSignUpgrade:
		input, err = multiSigABI.Pack(args.method, args.txKey, args.upgrade, args.signatures)
	}
	if err != nil {
		return nil, def.ErrParameter.More("pack %s: %v", args.method, err)
	}
	return input, nil
}

// decodeArgs unpacks a multi-sig outbound call
func decodeArgs(input []byte) (*callArgs, error) {
	if len(input) < 4 {
		return nil, def.ErrClassificationRejected.More("short input")
	}
	method, err := multiSigABI.MethodById(input[:4])
	if err != nil {
		return nil, def.ErrClassificationRejected.More("unknown selector")
	}
	values, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, def.ErrValidationFailed.More("unpack %s: %v", method.Name, err)
	}

	args := &callArgs{method: method.Name}
	ok := true
	switch method.Name {
	case MethodCreateOrSignWithdraw:
		args.txKey, ok = values[0].(string)
		args.to = values[1].(common.Address)
		args.amount = values[2].(*big.Int)
		args.isContractAsset = values[3].(bool)
		args.erc20 = values[4].(common.Address)
		args.signatures = values[5].([]byte)
	case MethodCreateOrSignManagerChange:
		args.txKey, ok = values[0].(string)
		args.adds = values[1].([]common.Address)
		args.removes = values[2].([]common.Address)
		args.count = values[3].(uint8)
		args.signatures = values[4].([]byte)
	case MethodCreateOrSignUpgrade:
		args.txKey, ok = values[0].(string)
		args.upgrade = values[1].(common.Address)
		args.signatures = values[2].([]byte)
	default:
		return nil, def.ErrClassificationRejected.More("not an outbound method %s", method.Name)
	}
	if !ok {
		return nil, def.ErrValidationFailed.More("bad txKey")
	}
	return args, nil
}

// request rebuilds the coordination request of decoded call args
func (c *codec) request(args *callArgs) (*def.Request, error) {
	nerveTxHash, recovery := def.SplitTxKey(args.txKey)
	req := &def.Request{
		NerveTxHash: nerveTxHash,
		Signatures:  utils.F(args.signatures),
	}
	switch args.method {
	case MethodCreateOrSignWithdraw:
		req.Type = def.TxTypeWithdraw
		req.ToAddress = args.to.Hex()
		req.Value = args.amount
		asset := c.assets.Main()
		if args.isContractAsset {
			var ok bool
			asset, ok = c.assets.ByContract(args.erc20)
			if !ok {
				return nil, def.ErrAssetNotFound.More("contract %s", args.erc20.Hex())
			}
		}
		req.AssetId = asset.AssetId
	case MethodCreateOrSignManagerChange:
		req.Type = def.TxTypeManagerChange
		if recovery {
			req.Type = def.TxTypeRecovery
		}
		req.AddAddresses = fromAddresses(args.adds)
		req.RemoveAddresses = fromAddresses(args.removes)
		req.OriginalMemberCount = int(args.count)
	case MethodCreateOrSignUpgrade:
		req.Type = def.TxTypeContractUpgrade
		req.NewContract = args.upgrade.Hex()
	}
	return req, nil
}

func (c *codec) decode(input []byte) (*def.Request, error) {
	args, err := decodeArgs(input)
	if err != nil {
		return nil, err
	}
	return c.request(args)
}

// SigningHash returns the digest managers sign for req
func (c *codec) SigningHash(req *def.Request) ([]byte, error) {
	args, err := c.argsOf(req)
	if err != nil {
		return nil, err
	}
	return args.signingHash(c.version)
}

func toAddresses(addrs []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(addrs))
	for _, a := range addrs {
		if !common.IsHexAddress(a) {
			return nil, def.ErrInvalidAddress.More("%s", a)
		}
		out = append(out, common.HexToAddress(a))
	}
	return out, nil
}

func fromAddresses(addrs []common.Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Hex())
	}
	return out
}
