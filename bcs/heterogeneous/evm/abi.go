package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	MethodCreateOrSignWithdraw      = "createOrSignWithdraw"
	MethodCreateOrSignManagerChange = "createOrSignManagerChange"
	MethodCreateOrSignUpgrade       = "createOrSignUpgrade"
	MethodCrossOut                  = "crossOut"
	MethodIsMinterERC20             = "isMinterERC20"
	MethodIsCompletedTx             = "isCompletedTx"
	MethodIfManager                 = "ifManager"
	MethodBalanceOf                 = "balanceOf"

	EventCrossOutFunds            = "CrossOutFunds"
	EventDepositFunds             = "DepositFunds"
	EventTxWithdrawCompleted      = "TxWithdrawCompleted"
	EventTxManagerChangeCompleted = "TxManagerChangeCompleted"
	EventTxUpgradeCompleted       = "TxUpgradeCompleted"
	EventTransfer                 = "Transfer"
)

// 多签合约接口
const multiSigABIJSON = `[
{"type":"function","name":"createOrSignWithdraw","stateMutability":"nonpayable","inputs":[
	{"name":"txKey","type":"string"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"},
	{"name":"isContractAsset","type":"bool"},{"name":"ERC20","type":"address"},{"name":"signatures","type":"bytes"}],"outputs":[]},
{"type":"function","name":"createOrSignManagerChange","stateMutability":"nonpayable","inputs":[
	{"name":"txKey","type":"string"},{"name":"adds","type":"address[]"},{"name":"removes","type":"address[]"},
	{"name":"count","type":"uint8"},{"name":"signatures","type":"bytes"}],"outputs":[]},
{"type":"function","name":"createOrSignUpgrade","stateMutability":"nonpayable","inputs":[
	{"name":"txKey","type":"string"},{"name":"upgradeContract","type":"address"},{"name":"signatures","type":"bytes"}],"outputs":[]},
{"type":"function","name":"crossOut","stateMutability":"payable","inputs":[
	{"name":"to","type":"string"},{"name":"amount","type":"uint256"},{"name":"ERC20","type":"address"}],
	"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"isMinterERC20","stateMutability":"view","inputs":[{"name":"ERC20","type":"address"}],
	"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"isCompletedTx","stateMutability":"view","inputs":[{"name":"txKey","type":"string"}],
	"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"ifManager","stateMutability":"view","inputs":[{"name":"_manager","type":"address"}],
	"outputs":[{"name":"","type":"bool"}]},
{"type":"event","name":"CrossOutFunds","anonymous":false,"inputs":[
	{"indexed":false,"name":"from","type":"address"},{"indexed":false,"name":"to","type":"string"},
	{"indexed":false,"name":"amount","type":"uint256"},{"indexed":false,"name":"ERC20","type":"address"}]},
{"type":"event","name":"DepositFunds","anonymous":false,"inputs":[
	{"indexed":false,"name":"from","type":"address"},{"indexed":false,"name":"amount","type":"uint256"}]},
{"type":"event","name":"TxWithdrawCompleted","anonymous":false,"inputs":[{"indexed":false,"name":"txKey","type":"string"}]},
{"type":"event","name":"TxManagerChangeCompleted","anonymous":false,"inputs":[{"indexed":false,"name":"txKey","type":"string"}]},
{"type":"event","name":"TxUpgradeCompleted","anonymous":false,"inputs":[{"indexed":false,"name":"txKey","type":"string"}]}
]`

// ERC20最小接口
const erc20ABIJSON = `[
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],
	"outputs":[{"name":"","type":"uint256"}]},
{"type":"event","name":"Transfer","anonymous":false,"inputs":[
	{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},
	{"indexed":false,"name":"value","type":"uint256"}]}
]`

var (
	multiSigABI = mustParseABI(multiSigABIJSON)
	erc20ABI    = mustParseABI(erc20ABIJSON)

	completionEvents = map[string]string{
		MethodCreateOrSignWithdraw:      EventTxWithdrawCompleted,
		MethodCreateOrSignManagerChange: EventTxManagerChangeCompleted,
		MethodCreateOrSignUpgrade:       EventTxUpgradeCompleted,
	}
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("parse abi failed: " + err.Error())
	}
	return parsed
}
