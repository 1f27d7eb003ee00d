// FILE: signer.go
// Package main – Trader credential and request signing.
//
// The trader key is a hex secp256k1 private key (TRADER_PRIVATE_KEY). The
// bridge authenticates every mutating request by recovering the signer from
// X-Signature, a 65-byte signature over keccak256(body).
package main

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// LoadSigner parses a hex private key, with or without 0x.
func LoadSigner(hexKey string) (*Signer, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, fmt.Errorf("%w: TRADER_PRIVATE_KEY is not set", ErrMissingCredential)
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed trader key: %v", ErrMissingCredential, err)
	}
	return newSigner(key), nil
}

// GenerateSigner creates a throwaway key for dry runs.
func GenerateSigner() (*Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return newSigner(key), nil
}

func newSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

func (s *Signer) Address() common.Address { return s.address }

// Sign returns the 0x-hex signature over keccak256(payload).
func (s *Signer) Sign(payload []byte) (string, error) {
	sig, err := crypto.Sign(crypto.Keccak256(payload), s.key)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// VerifySignature reports whether sigHex over payload was produced by addr.
func VerifySignature(payload []byte, sigHex string, addr common.Address) bool {
	sig, err := hexutil.Decode(sigHex)
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}
	pub, err := crypto.SigToPub(crypto.Keccak256(payload), sig)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == addr
}
