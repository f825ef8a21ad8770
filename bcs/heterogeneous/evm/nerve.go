package evm

import (
	"encoding/binary"

	"github.com/btcsuite/btcutil/base58"
)

// 本链地址格式：prefix + 长度标识字母 + base58(chainId(2) + type(1) + hash160(20) + xor(1))
const (
	nerveAddrBodyLen   = 24
	nerveLengthLetters = "abcde"
)

// ValidNerveAddress checks the format of a native chain address
func ValidNerveAddress(addr string) bool {
	for i := 1; i <= len(nerveLengthLetters) && i < len(addr); i++ {
		if addr[i] != nerveLengthLetters[i-1] {
			continue
		}
		body := base58.Decode(addr[i+1:])
		if len(body) != nerveAddrBodyLen {
			continue
		}
		if xorOf(body[:nerveAddrBodyLen-1]) == body[nerveAddrBodyLen-1] {
			return true
		}
	}
	return false
}

// EncodeNerveAddress builds a native chain address
func EncodeNerveAddress(prefix string, chainId uint16, addrType byte, hash160 []byte) string {
	if len(prefix) == 0 || len(prefix) > len(nerveLengthLetters) || len(hash160) != 20 {
		return ""
	}
	body := make([]byte, 0, nerveAddrBodyLen)
	body = binary.LittleEndian.AppendUint16(body, chainId)
	body = append(body, addrType)
	body = append(body, hash160...)
	body = append(body, xorOf(body))
	return prefix + string(nerveLengthLetters[len(prefix)-1]) + base58.Encode(body)
}

func xorOf(buf []byte) byte {
	var x byte
	for _, b := range buf {
		x ^= b
	}
	return x
}
