package converter

import (
	"context"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
	"github.com/xuperchain/xdock/lib/logs"
)

// 本链converter模块的RPC命名空间
const Namespace = "converter"

const (
	methodPendingTxSubmit     = Namespace + "_pendingTxSubmit"
	methodPendingTxOfWithdraw = Namespace + "_pendingTxOfWithdraw"
	methodTxConfirmed         = Namespace + "_txConfirmed"
	methodRegainSignatures    = Namespace + "_regainSignatures"
	methodCurrentVirtualBanks = Namespace + "_currentVirtualBanks"
	methodVirtualBankSize     = Namespace + "_virtualBankSize"
)

const defaultCallTimeout = 15 * time.Second

var _ def.Converter = (*Client)(nil)

// Client talks to the native chain converter module over json-rpc
type Client struct {
	rpc     *rpc.Client
	timeout time.Duration
	log     logs.Logger
}

// Dial connects to the converter endpoint, http, ws or ipc
func Dial(ctx context.Context, rawurl string) (*Client, error) {
	c, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, errors.Wrapf(err, "dial converter %s", rawurl)
	}
	return NewClient(c)
}

func NewClient(c *rpc.Client) (*Client, error) {
	if c == nil {
		return nil, def.ErrParameter.More("nil rpc client")
	}
	log, err := logs.NewLogger("", "converter")
	if err != nil {
		return nil, err
	}
	return &Client{rpc: c, timeout: defaultCallTimeout, log: log}, nil
}

func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.rpc.CallContext(ctx, result, method, args...); err != nil {
		return errors.Wrapf(err, "call %s", method)
	}
	return nil
}

// submitStatus maps the duplicate answer of the native chain to a status
func (c *Client) submitStatus(err error) (def.SubmitStatus, error) {
	if err == nil {
		return def.SubmitOK, nil
	}
	if isAlreadyExists(err) {
		return def.SubmitAlreadyExists, nil
	}
	return def.SubmitOK, err
}

func isAlreadyExists(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == def.ErrAlreadyExists.Code {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exist")
}

func (c *Client) PendingTxSubmit(ctx context.Context, info *def.TxInfo) (def.SubmitStatus, error) {
	return c.submitStatus(c.call(ctx, nil, methodPendingTxSubmit, info))
}

func (c *Client) PendingTxOfWithdraw(ctx context.Context, nerveTxHash, txHash string) (def.SubmitStatus, error) {
	return c.submitStatus(c.call(ctx, nil, methodPendingTxOfWithdraw, nerveTxHash, txHash))
}

func (c *Client) TxConfirmed(ctx context.Context, tx *def.ConfirmedTx) error {
	err := c.call(ctx, nil, methodTxConfirmed, tx)
	if err != nil && isAlreadyExists(err) {
		c.log.Debug("confirmed tx already reported", "nerveTxHash", tx.NerveTxHash, "txHash", tx.TxHash)
		return nil
	}
	return err
}

func (c *Client) RegainSignatures(ctx context.Context, nerveChainId int, nerveTxHash string,
	chainId int) ([]string, error) {
	var sigs []string
	if err := c.call(ctx, &sigs, methodRegainSignatures, nerveChainId, nerveTxHash, chainId); err != nil {
		return nil, err
	}
	return sigs, nil
}

func (c *Client) CurrentVirtualBanks(ctx context.Context, chainId int) (map[string]int, error) {
	banks := make(map[string]int)
	if err := c.call(ctx, &banks, methodCurrentVirtualBanks, chainId); err != nil {
		return nil, err
	}
	return banks, nil
}

func (c *Client) VirtualBankSize(ctx context.Context) (int, error) {
	var size int
	if err := c.call(ctx, &size, methodVirtualBankSize); err != nil {
		return 0, err
	}
	return size, nil
}
