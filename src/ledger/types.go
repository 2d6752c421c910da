package ledger

import (
	"encoding/hex"
	"math"

	"github.com/corelattice/lattice/src/crypto"
)

// ChainID identifies one replicated ledger instance. It is the lowercase hex
// representation of a 32-byte hash.
type ChainID string

// NewChainID derives a ChainID from an arbitrary seed.
func NewChainID(seed []byte) ChainID {
	return ChainID(hexHash(seed))
}

// BlockHeight is the position of a block in a chain. It only ever advances.
type BlockHeight uint64

// ArithmeticError is returned when height arithmetic would wrap around.
type ArithmeticError string

// Error implements the error interface.
func (e ArithmeticError) Error() string {
	return string(e)
}

const (
	// ErrHeightOverflow signals an addition past the maximum height.
	ErrHeightOverflow = ArithmeticError("block height overflow")
	// ErrHeightUnderflow signals a subtraction below zero.
	ErrHeightUnderflow = ArithmeticError("block height underflow")
)

// Add returns h+n, or ErrHeightOverflow if the result would wrap.
func (h BlockHeight) Add(n uint64) (BlockHeight, error) {
	if uint64(h) > math.MaxUint64-n {
		return 0, ErrHeightOverflow
	}
	return h + BlockHeight(n), nil
}

// Sub returns h-other, or ErrHeightUnderflow if other > h.
func (h BlockHeight) Sub(other BlockHeight) (uint64, error) {
	if other > h {
		return 0, ErrHeightUnderflow
	}
	return uint64(h - other), nil
}

// MessageID identifies a message sent by a block of a chain.
type MessageID struct {
	ChainID ChainID
	Height  BlockHeight
	Index   uint32
}

// BlockHeightRange requests certificates from Start. Limit bounds the number
// of certificates returned; 0 means no limit.
type BlockHeightRange struct {
	Start BlockHeight
	Limit uint64
}

// SingleHeightRange returns the range containing exactly one height.
func SingleHeightRange(h BlockHeight) BlockHeightRange {
	return BlockHeightRange{Start: h, Limit: 1}
}

func hexHash(data []byte) string {
	return hexEncode(crypto.SHA256(data))
}

func hexEncode(data []byte) string {
	return hex.EncodeToString(data)
}
