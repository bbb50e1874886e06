// fork from github.com/tendermint/tendermint/types/validator.go
package types

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tendermint/tendermint/crypto/tmhash"
	tmbytes "github.com/tendermint/tendermint/libs/bytes"
)

const AddressSize = tmhash.TruncatedSize

type Address = tmbytes.HexBytes

// AddressFromPubKey 地址为公钥hash的前20个字节
func AddressFromPubKey(pubKey []byte) Address {
	return Address(tmhash.SumTruncated(pubKey))
}

// Validator is one member of an epoch's verifier set.
// NOTE: PubKey is kept as raw bytes so that the epoch state stays encodable.
type Validator struct {
	Address     Address `json:"address" cramberry:"1"`
	PubKey      []byte  `json:"pub_key" cramberry:"2"`
	VotingPower uint64  `json:"voting_power" cramberry:"3"`
}

// NewValidator returns a new validator with the given pubkey and voting power.
func NewValidator(pubKey []byte, votingPower uint64) *Validator {
	return &Validator{
		Address:     AddressFromPubKey(pubKey),
		PubKey:      append([]byte{}, pubKey...),
		VotingPower: votingPower,
	}
}

// ValidateBasic performs basic validation.
func (v *Validator) ValidateBasic() error {
	if v == nil {
		return errors.New("nil validator")
	}
	if len(v.PubKey) == 0 {
		return errors.New("validator does not have a public key")
	}

	if len(v.Address) != AddressSize {
		return fmt.Errorf("validator address is the wrong size: %v", v.Address)
	}

	if !bytes.Equal(v.Address, AddressFromPubKey(v.PubKey)) {
		return fmt.Errorf("validator address %v does not match its public key", v.Address)
	}

	if v.VotingPower == 0 {
		return errors.New("validator has no voting power")
	}

	return nil
}

// Copy creates a new copy of the validator so we can mutate it.
func (v *Validator) Copy() *Validator {
	vCopy := *v
	vCopy.Address = append(Address{}, v.Address...)
	vCopy.PubKey = append([]byte{}, v.PubKey...)
	return &vCopy
}

// Bytes returns the deterministic bytes used as a merkle leaf of the set.
func (v *Validator) Bytes() []byte {
	bz := make([]byte, 0, len(v.Address)+len(v.PubKey)+8)
	bz = append(bz, v.Address...)
	bz = append(bz, v.PubKey...)
	var power [8]byte
	binary.BigEndian.PutUint64(power[:], v.VotingPower)
	return append(bz, power[:]...)
}

func (v *Validator) String() string {
	if v == nil {
		return "nil-Validator"
	}
	return fmt.Sprintf("Validator{%v VP:%v}", v.Address, v.VotingPower)
}
