package evm

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
)

// AssetRegistry 按资产ID和合约地址索引的资产登记表，构造后只读
type AssetRegistry struct {
	byId       map[int]*def.Asset
	byContract map[common.Address]*def.Asset
}

func NewAssetRegistry(assets []def.Asset) (*AssetRegistry, error) {
	r := &AssetRegistry{
		byId:       make(map[int]*def.Asset, len(assets)+1),
		byContract: make(map[common.Address]*def.Asset, len(assets)),
	}
	for i := range assets {
		a := assets[i]
		if _, dup := r.byId[a.AssetId]; dup {
			return nil, def.ErrParameter.More("duplicate asset id %d", a.AssetId)
		}
		if a.IsContractAsset() {
			if !common.IsHexAddress(a.Contract) {
				return nil, def.ErrInvalidAddress.More("asset %d contract %s", a.AssetId, a.Contract)
			}
			addr := common.HexToAddress(a.Contract)
			if _, dup := r.byContract[addr]; dup {
				return nil, def.ErrParameter.More("duplicate asset contract %s", a.Contract)
			}
			a.Contract = addr.Hex()
			r.byContract[addr] = &a
		}
		r.byId[a.AssetId] = &a
	}
	if _, ok := r.byId[def.MainAssetId]; !ok {
		r.byId[def.MainAssetId] = &def.Asset{AssetId: def.MainAssetId, Decimals: 18}
	}
	return r, nil
}

func (r *AssetRegistry) ById(assetId int) (*def.Asset, bool) {
	a, ok := r.byId[assetId]
	return a, ok
}

func (r *AssetRegistry) ByContract(contract common.Address) (*def.Asset, bool) {
	a, ok := r.byContract[contract]
	return a, ok
}

// Main returns the native coin asset
func (r *AssetRegistry) Main() *def.Asset {
	return r.byId[def.MainAssetId]
}
