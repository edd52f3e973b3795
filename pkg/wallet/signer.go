// Package wallet signs and verifies EIP-191 personal-sign messages for
// account-authenticated API requests.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mselser95/bangr-engine/pkg/types"
)

// Request headers carrying the caller, the signing time in unix
// milliseconds and the signature.
const (
	HeaderAccount   = "X-Account"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
)

// Signer holds a private key and the address it controls.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner parses a hex private key, with or without 0x prefix.
func NewSigner(privateKeyHex string) (*Signer, error) {
	if privateKeyHex == "" {
		return nil, errors.New("private key cannot be empty")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	publicKeyECDSA, ok := key.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("cast public key to ECDSA")
	}

	return &Signer{key: key, address: crypto.PubkeyToAddress(*publicKeyECDSA)}, nil
}

// Address returns the signer's account.
func (s *Signer) Address() common.Address {
	return s.address
}

// Sign produces a 65-byte personal-sign signature with V in {27, 28}.
func (s *Signer) Sign(message []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(message), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// SignRequest signs the canonical request message and returns it hex encoded.
// timestamp is the unix millisecond value sent in X-Timestamp.
func (s *Signer) SignRequest(method, path string, timestamp int64, body []byte) (string, error) {
	sig, err := s.Sign(RequestMessage(method, path, timestamp, body))
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// RequestMessage is the signed form of an API request:
// "METHOD PATH\nTIMESTAMP\nBODY".
func RequestMessage(method, path string, timestamp int64, body []byte) []byte {
	ts := strconv.FormatInt(timestamp, 10)
	msg := make([]byte, 0, len(method)+len(path)+len(ts)+len(body)+3)
	msg = append(msg, strings.ToUpper(method)...)
	msg = append(msg, ' ')
	msg = append(msg, path...)
	msg = append(msg, '\n')
	msg = append(msg, ts...)
	msg = append(msg, '\n')
	msg = append(msg, body...)
	return msg
}

// ParseTimestamp parses an X-Timestamp header value.
func ParseTimestamp(header string) (int64, error) {
	if header == "" {
		return 0, types.Errorf(types.ErrBadSignature, "missing %s header", HeaderTimestamp)
	}
	ts, err := strconv.ParseInt(header, 10, 64)
	if err != nil || ts <= 0 {
		return 0, types.Errorf(types.ErrBadSignature, "invalid %s header %q", HeaderTimestamp, header)
	}
	return ts, nil
}

// Recover returns the account that produced a personal-sign signature.
// V may be 0/1 or 27/28.
func Recover(message, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, types.Errorf(types.ErrBadSignature, "signature must be %d bytes, got %d",
			crypto.SignatureLength, len(signature))
	}

	sig := make([]byte, len(signature))
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash(message), sig)
	if err != nil {
		return common.Address{}, types.Errorf(types.ErrBadSignature, "recover signer: %v", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyRequest checks that signatureHex over the request was produced by account.
func VerifyRequest(account common.Address, method, path string, timestamp int64, body []byte, signatureHex string) error {
	if signatureHex == "" {
		SignatureChecksTotal.WithLabelValues("missing").Inc()
		return types.Errorf(types.ErrBadSignature, "missing %s header", HeaderSignature)
	}
	if !strings.HasPrefix(signatureHex, "0x") {
		signatureHex = "0x" + signatureHex
	}

	sig, err := hexutil.Decode(signatureHex)
	if err != nil {
		SignatureChecksTotal.WithLabelValues("malformed").Inc()
		return types.Errorf(types.ErrBadSignature, "decode signature: %v", err)
	}

	signer, err := Recover(RequestMessage(method, path, timestamp, body), sig)
	if err != nil {
		SignatureChecksTotal.WithLabelValues("malformed").Inc()
		return err
	}
	if signer != account {
		SignatureChecksTotal.WithLabelValues("mismatch").Inc()
		return types.Errorf(types.ErrBadSignature, "signed by %s, not %s", signer.Hex(), account.Hex())
	}

	SignatureChecksTotal.WithLabelValues("ok").Inc()
	return nil
}

// ParseAddress parses a hex account address.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, types.Errorf(types.ErrInvalidArgument, "invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
