package evm

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/lib/utils"
)

// revertReason extracts the solidity revert string carried by a node error
func revertReason(err error) string {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return ""
	}
	var data []byte
	switch d := dataErr.ErrorData().(type) {
	case string:
		data = utils.DecodeHex(d)
	case []byte:
		data = d
	}
	if len(data) == 0 {
		return ""
	}
	reason, uerr := abi.UnpackRevert(data)
	if uerr != nil {
		return ""
	}
	return reason
}

// mapCallError classifies an eth_estimateGas or eth_call failure
func mapCallError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error() + " " + revertReason(err))
	switch {
	case strings.Contains(msg, "signature"):
		return def.ErrInsufficientSignatures.More("%v", err)
	case strings.Contains(msg, "revert"):
		return def.ErrContractCallReverted.More("%v", err)
	default:
		return def.ErrGasEstimationFailed.More("%v", err)
	}
}

// alreadyKnown reports node side duplicates of a broadcast tx
func alreadyKnown(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already known") || strings.Contains(msg, "known transaction")
}
