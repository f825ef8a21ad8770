package evm

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Options EVM系链的扩展配置
type Options struct {
	// gas price 上浮百分比
	GasPriceBump int `mapstructure:"gasPriceBump"`
	// 0表示从节点查询
	NetworkId        int64 `mapstructure:"networkId"`
	ReceiptCacheSize int   `mapstructure:"receiptCacheSize"`
	// 多签合约签名版本
	SignatureVersion uint8 `mapstructure:"signatureVersion"`
}

func defaultOptions() *Options {
	return &Options{
		GasPriceBump:     10,
		ReceiptCacheSize: 1024,
		SignatureVersion: 3,
	}
}

// DecodeOptions decodes the free-form chain options over the defaults
func DecodeOptions(raw map[string]interface{}) (*Options, error) {
	opts := defaultOptions()
	if len(raw) == 0 {
		return opts, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           opts,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode evm options failed.err:%v", err)
	}
	if opts.GasPriceBump < 0 || opts.ReceiptCacheSize <= 0 {
		return nil, fmt.Errorf("invalid evm options %+v", *opts)
	}
	return opts, nil
}
