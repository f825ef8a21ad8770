package evm

import (
	"math/big"
	"strings"
	"testing"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xuperchain/xdock/kernel/heterogeneous/def"
)

func TestCodecRequests(t *testing.T) {
	c := &codec{assets: testAssets(t, false), version: 3}
	sig := strings.Repeat("ab", def.SignatureLength)
	cases := []*def.Request{
		{Type: def.TxTypeWithdraw, NerveTxHash: "h1", ToAddress: testUser.Hex(), Value: big.NewInt(10),
			AssetId: def.MainAssetId, Signatures: sig},
		{Type: def.TxTypeWithdraw, NerveTxHash: "h2", ToAddress: testUser.Hex(), Value: big.NewInt(10),
			AssetId: 2, Signatures: sig},
		{Type: def.TxTypeManagerChange, NerveTxHash: "h3", AddAddresses: []string{testUser.Hex()},
			RemoveAddresses: []string{}, OriginalMemberCount: 4, Signatures: sig},
		{Type: def.TxTypeRecovery, NerveTxHash: "h4", AddAddresses: []string{},
			RemoveAddresses: []string{testToken.Hex()}, OriginalMemberCount: 7, Signatures: sig},
		{Type: def.TxTypeContractUpgrade, NerveTxHash: "h5", NewContract: testToken.Hex(), Signatures: sig},
	}
	for _, req := range cases {
		input, err := c.encode(req)
		require.NoError(t, err, req.Type.String())
		got, err := c.decode(input)
		require.NoError(t, err, req.Type.String())
		assert.Equal(t, req, got, req.Type.String())
	}
}

func TestCodecRecoveryTxKey(t *testing.T) {
	c := &codec{assets: testAssets(t, false), version: 3}
	req := &def.Request{Type: def.TxTypeRecovery, NerveTxHash: "abc", AddAddresses: []string{},
		RemoveAddresses: []string{}, OriginalMemberCount: 3}
	args, err := c.argsOf(req)
	require.NoError(t, err)
	assert.Equal(t, "RECOVERYabc", args.txKey)
}

func TestCodecInvalid(t *testing.T) {
	c := &codec{assets: testAssets(t, false), version: 3}
	_, err := c.encode(&def.Request{Type: def.TxTypeWithdraw, NerveTxHash: "h", ToAddress: "bad", Value: big.NewInt(1)})
	assert.ErrorIs(t, err, def.ErrInvalidAddress)
	_, err = c.encode(&def.Request{Type: def.TxTypeWithdraw, NerveTxHash: "h", ToAddress: testUser.Hex(),
		Value: big.NewInt(1), AssetId: 42})
	assert.ErrorIs(t, err, def.ErrAssetNotFound)
	_, err = c.encode(&def.Request{Type: def.TxTypeWithdraw, NerveTxHash: "h", ToAddress: testUser.Hex(),
		Value: big.NewInt(1), Signatures: "zz"})
	assert.ErrorIs(t, err, def.ErrParameter)

	crossOut, err := multiSigABI.Pack(MethodCrossOut, "x", big.NewInt(1), common.Address{})
	require.NoError(t, err)
	_, err = c.decode(crossOut)
	assert.ErrorIs(t, err, def.ErrClassificationRejected)
	_, err = c.decode([]byte{1})
	assert.ErrorIs(t, err, def.ErrClassificationRejected)
}

func TestRecoverSigners(t *testing.T) {
	k1, _ := crypto.GenerateKey()
	k2, _ := crypto.GenerateKey()
	hash := crypto.Keccak256([]byte("payload"))

	signers, err := RecoverSigners(hash, signAll(t, hash, k2, k1, k2))
	require.NoError(t, err)
	assert.Equal(t, []string{
		crypto.PubkeyToAddress(k2.PublicKey).Hex(),
		crypto.PubkeyToAddress(k1.PublicKey).Hex(),
	}, signers)

	_, err = RecoverSigners(hash, make([]byte, 64))
	assert.ErrorIs(t, err, def.ErrValidationFailed)
	assert.Equal(t, 2, SignatureCount("0x"+strings.Repeat("00", 130)))
	assert.Equal(t, 0, SignatureCount("bad"))
}

func TestNerveAddress(t *testing.T) {
	addr := testNerveAddress()
	assert.True(t, strings.HasPrefix(addr, "TNVTd"))
	assert.True(t, ValidNerveAddress(addr))
	body := base58.Decode(addr[5:])
	body[3] ^= 0xff
	assert.False(t, ValidNerveAddress(addr[:5]+base58.Encode(body)))
	assert.False(t, ValidNerveAddress("0x1234"))
	assert.True(t, ValidNerveAddress(EncodeNerveAddress("NERVE", 9, 1, make([]byte, 20))))
	assert.Equal(t, "", EncodeNerveAddress("TOOLONG", 9, 1, make([]byte, 20)))
}

func TestDecodeOptions(t *testing.T) {
	opts, err := DecodeOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, 10, opts.GasPriceBump)

	opts, err = DecodeOptions(map[string]interface{}{"gasPriceBump": "25", "networkId": 97})
	require.NoError(t, err)
	assert.Equal(t, 25, opts.GasPriceBump)
	assert.Equal(t, int64(97), opts.NetworkId)
	assert.Equal(t, uint8(3), opts.SignatureVersion)

	_, err = DecodeOptions(map[string]interface{}{"receiptCacheSize": -1})
	assert.Error(t, err)
}
