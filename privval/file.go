package privval

import (
	"crypto/cipher"
	"fmt"
	"io/ioutil"

	"chainbft_core/types"

	tmbytes "github.com/tendermint/tendermint/libs/bytes"
	tmjson "github.com/tendermint/tendermint/libs/json"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/libs/tempfile"
	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/pairing/bn256"
	"go.dedis.ch/kyber/v3/sign/bls"
	"go.dedis.ch/kyber/v3/util/random"
	"go.dedis.ch/kyber/v3/xof/blake2xb"
)

var suite = bn256.NewSuite()

//-------------------------------------------------------------------------------

// SignerKey stores the immutable part of Signer.
type SignerKey struct {
	Address types.Address    `json:"address"`
	PubKey  tmbytes.HexBytes `json:"pub_key"`
	PrivKey tmbytes.HexBytes `json:"priv_key"`

	filePath string
}

// Save persists the SignerKey to its filePath.
func (key SignerKey) Save() error {
	outFile := key.filePath
	if outFile == "" {
		return fmt.Errorf("cannot save signer key: filePath not set")
	}

	jsonBytes, err := tmjson.MarshalIndent(key, "", "  ")
	if err != nil {
		return err
	}
	return tempfile.WriteFileAtomic(outFile, jsonBytes, 0600)
}

//-------------------------------------------------------------------------------

// Signer 用BLS私钥对执行结果(vote proposal)签名
type Signer struct {
	Key SignerKey

	priv kyber.Scalar
	pub  kyber.Point
}

// NewSigner generates a signer from the given key and path.
func NewSigner(priv kyber.Scalar, keyFilePath string) (*Signer, error) {
	pub := suite.G2().Point().Mul(priv, nil)
	privBz, err := priv.MarshalBinary()
	if err != nil {
		return nil, err
	}
	pubBz, err := pub.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &Signer{
		Key: SignerKey{
			Address:  types.AddressFromPubKey(pubBz),
			PubKey:   pubBz,
			PrivKey:  privBz,
			filePath: keyFilePath,
		},
		priv: priv,
		pub:  pub,
	}, nil
}

// GenSigner generates a new signer and sets the filePath, but does not call
// Save(). The same non-empty seed always gives the same key.
func GenSigner(keyFilePath string, seed []byte) (*Signer, error) {
	var stream cipher.Stream
	if len(seed) > 0 {
		stream = blake2xb.New(seed)
	} else {
		stream = random.New()
	}
	priv, _ := bls.NewKeyPair(suite, stream)
	return NewSigner(priv, keyFilePath)
}

// LoadSigner loads a Signer from the filePath.
func LoadSigner(keyFilePath string) (*Signer, error) {
	keyJSONBytes, err := ioutil.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	key := SignerKey{}
	if err := tmjson.Unmarshal(keyJSONBytes, &key); err != nil {
		return nil, fmt.Errorf("error reading signer key from %v: %w", keyFilePath, err)
	}

	priv := suite.G2().Scalar()
	if err := priv.UnmarshalBinary(key.PrivKey); err != nil {
		return nil, fmt.Errorf("error decoding private key from %v: %w", keyFilePath, err)
	}

	// overwrite pubkey and address for convenience
	return NewSigner(priv, keyFilePath)
}

// LoadOrGenSigner loads a Signer from the given filePath
// or else generates a new one and saves it to the filePath.
func LoadOrGenSigner(keyFilePath string) (*Signer, error) {
	if tmos.FileExists(keyFilePath) {
		return LoadSigner(keyFilePath)
	}
	signer, err := GenSigner(keyFilePath, nil)
	if err != nil {
		return nil, err
	}
	return signer, signer.Save()
}

// GetAddress returns the address of the signer.
func (s *Signer) GetAddress() types.Address {
	return s.Key.Address
}

func (s *Signer) PubKeyBytes() []byte {
	return append([]byte{}, s.Key.PubKey...)
}

// Validator 以该签名者的公钥构造验证者
func (s *Signer) Validator(votingPower uint64) *types.Validator {
	return types.NewValidator(s.Key.PubKey, votingPower)
}

func (s *Signer) Sign(msg []byte) ([]byte, error) {
	return bls.Sign(suite, s.priv, msg)
}

// SignVoteProposal signs the hash of the proposal.
func (s *Signer) SignVoteProposal(vp *types.VoteProposal) ([]byte, error) {
	h := vp.Hash()
	sig, err := s.Sign(h.Bytes())
	if err != nil {
		return nil, fmt.Errorf("error signing vote proposal: %v", err)
	}
	return sig, nil
}

// Save persists the Signer to disk.
func (s *Signer) Save() error {
	return s.Key.Save()
}

// String returns a string representation of the Signer.
func (s *Signer) String() string {
	return fmt.Sprintf(
		"Signer{%v}",
		s.GetAddress(),
	)
}

//------------------------------------------------------------------------------------

// VerifySignature checks sig over msg against a marshaled public key.
func VerifySignature(pubKey, msg, sig []byte) error {
	pub := suite.G2().Point()
	if err := pub.UnmarshalBinary(pubKey); err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}
	return bls.Verify(suite, pub, msg, sig)
}

// VerifyVoteProposal checks a signed proposal against a marshaled public key.
func VerifyVoteProposal(pubKey []byte, msp *types.MaybeSignedVoteProposal) error {
	if !msp.IsSigned() {
		return fmt.Errorf("vote proposal is not signed")
	}
	h := msp.VoteProposal.Hash()
	return VerifySignature(pubKey, h.Bytes(), msp.Signature)
}
