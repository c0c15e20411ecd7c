package venue

import (
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	mathhex "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	domainName           = "CascadeVenue"
	domainVersion        = "1"
	verifyingContractHex = "0x0000000000000000000000000000000000000000"
)

// Signature is an ECDSA signature split into its components. V is 27 or 28.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// Signer signs action digests with a private key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner parses a hex private key, with or without 0x prefix.
func NewSigner(privateKeyHex string) (*Signer, error) {
	keyHex := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	if keyHex == "" {
		return nil, errors.New("venue: empty private key")
	}
	key, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("venue: decode private key: %w", err)
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address returns the checksummed signer address.
func (s *Signer) Address() string {
	return s.address.Hex()
}

// Sign signs a 32-byte digest.
func (s *Signer) Sign(digest []byte) (*Signature, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("venue: expected 32-byte digest, got %d bytes", len(digest))
	}
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, fmt.Errorf("venue: sign digest: %w", err)
	}
	return &Signature{
		R: "0x" + hex.EncodeToString(sig[:32]),
		S: "0x" + hex.EncodeToString(sig[32:64]),
		V: int(sig[64]) + 27,
	}, nil
}

// actionDigest hashes the msgpack encoding of action together with the
// account and nonce, then wraps the result in an EIP-712 envelope bound to
// chainID.
func actionDigest(action *SwapAction, account string, nonce int64, chainID int64) ([]byte, error) {
	if nonce <= 0 {
		return nil, errors.New("venue: nonce must be positive")
	}
	if !common.IsHexAddress(account) {
		return nil, fmt.Errorf("venue: invalid account %q", account)
	}
	packed, err := msgpack.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("venue: msgpack encode action: %w", err)
	}
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], uint64(nonce))

	payload := make([]byte, 0, len(packed)+common.AddressLength+len(nonceBytes))
	payload = append(payload, packed...)
	payload = append(payload, common.HexToAddress(account).Bytes()...)
	payload = append(payload, nonceBytes[:]...)
	connectionID := crypto.Keccak256(payload)

	typed := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Swap": {
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Swap",
		Domain: apitypes.TypedDataDomain{
			Name:              domainName,
			Version:           domainVersion,
			ChainId:           mathhex.NewHexOrDecimal256(chainID),
			VerifyingContract: verifyingContractHex,
		},
		Message: map[string]interface{}{
			"connectionId": connectionID,
		},
	}
	domainSeparator, err := typed.HashStruct("EIP712Domain", typed.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("venue: hash domain: %w", err)
	}
	messageHash, err := typed.HashStruct(typed.PrimaryType, typed.Message)
	if err != nil {
		return nil, fmt.Errorf("venue: hash message: %w", err)
	}
	raw := make([]byte, 0, 2+len(domainSeparator)+len(messageHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, messageHash...)
	return crypto.Keccak256(raw), nil
}

// RecoverSigner returns the address that signed req.
func RecoverSigner(req *SignedRequest, chainID int64) (string, error) {
	digest, err := actionDigest(&req.Action, req.Account, req.Nonce, chainID)
	if err != nil {
		return "", err
	}
	r, err := hex.DecodeString(strings.TrimPrefix(req.Signature.R, "0x"))
	if err != nil || len(r) != 32 {
		return "", errors.New("venue: malformed signature r")
	}
	s, err := hex.DecodeString(strings.TrimPrefix(req.Signature.S, "0x"))
	if err != nil || len(s) != 32 {
		return "", errors.New("venue: malformed signature s")
	}
	if req.Signature.V != 27 && req.Signature.V != 28 {
		return "", errors.New("venue: malformed signature v")
	}
	sig := make([]byte, 0, 65)
	sig = append(sig, r...)
	sig = append(sig, s...)
	sig = append(sig, byte(req.Signature.V-27))
	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return "", fmt.Errorf("venue: recover: %w", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
