package types

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/tendermint/tendermint/crypto/tmhash"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

const HashSize = tmhash.Size

// HashValue 区块、状态、交易等统一使用的32字节hash
type HashValue [HashSize]byte

var (
	ZeroHash = HashValue{}

	// AccumulatorPlaceholderHash 累加器中空子树的占位hash
	AccumulatorPlaceholderHash = HashValue{
		0x41, 0x43, 0x43, 0x55, 0x4d, 0x55, 0x4c, 0x41,
		0x54, 0x4f, 0x52, 0x5f, 0x50, 0x4c, 0x41, 0x43,
		0x45, 0x48, 0x4f, 0x4c, 0x44, 0x45, 0x52, 0x5f,
		0x48, 0x41, 0x53, 0x48, 0x00, 0x00, 0x00, 0x00,
	}
)

// Sum 计算bz的hash
func Sum(bz []byte) HashValue {
	var h HashValue
	copy(h[:], tmhash.Sum(bz))
	return h
}

// HashFromBytes converts a raw 32-byte slice. Any other length is an error.
func HashFromBytes(bz []byte) (HashValue, error) {
	var h HashValue
	if len(bz) != HashSize {
		return h, fmt.Errorf("wrong hash length: expected %d, got %d", HashSize, len(bz))
	}
	copy(h[:], bz)
	return h, nil
}

func MustHashFromHex(s string) HashValue {
	bz, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	h, err := HashFromBytes(bz)
	if err != nil {
		panic(err)
	}
	return h
}

func (h HashValue) Bytes() []byte {
	return h[:]
}

func (h HashValue) IsZero() bool {
	return h == ZeroHash
}

func (h HashValue) Equal(other HashValue) bool {
	return bytes.Equal(h[:], other[:])
}

func (h HashValue) String() string {
	return tmbytes.HexBytes(h[:]).String()
}

// ShortString 日志中只打印前4个字节
func (h HashValue) ShortString() string {
	return tmbytes.HexBytes(h[:4]).String()
}
