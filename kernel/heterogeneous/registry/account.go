package registry

import (
	"encoding/json"
	"strings"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/lib/storage/kvdb"
)

const (
	AccountTablePrefix = "AC"
)

// Accounts keystore记录，私钥以加密形式保存
type Accounts struct {
	table kvdb.Database
}

func NewAccounts(db kvdb.Database) *Accounts {
	return &Accounts{table: kvdb.NewTable(db, AccountTablePrefix)}
}

func (a *Accounts) Save(acc *def.Account) error {
	buf, err := json.Marshal(acc)
	if err != nil {
		return def.ErrStorage.More("encode account: %v", err)
	}
	if err := a.table.Put(accountKey(acc.Address), buf); err != nil {
		return def.ErrStorage.More("save account %s: %v", acc.Address, err)
	}
	return nil
}

func (a *Accounts) Get(address string) (*def.Account, error) {
	buf, err := a.table.Get(accountKey(address))
	if err != nil {
		if kvdb.ErrNotFound(err) {
			return nil, def.ErrAccountNotFound.More("%s", address)
		}
		return nil, def.ErrStorage.More("load account %s: %v", address, err)
	}
	acc := new(def.Account)
	if err := json.Unmarshal(buf, acc); err != nil {
		return nil, def.ErrStorage.More("decode account %s: %v", address, err)
	}
	return acc, nil
}

func (a *Accounts) List() ([]*def.Account, error) {
	var accs []*def.Account
	it := a.table.NewIteratorWithPrefix(nil)
	defer it.Release()
	for it.Next() {
		acc := new(def.Account)
		if err := json.Unmarshal(it.Value(), acc); err != nil {
			continue
		}
		accs = append(accs, acc)
	}
	return accs, it.Error()
}

func accountKey(address string) []byte {
	return []byte(strings.ToLower(address))
}
