package main

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestLoadSignerRoundTrip(t *testing.T) {
	s1, err := GenerateSigner()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if s1.Address() == (common.Address{}) {
		t.Fatal("zero address")
	}
	keyHex := hexutil.Encode(crypto.FromECDSA(s1.key))

	for _, in := range []string{keyHex, keyHex[2:], "  " + keyHex + "\n"} {
		s2, err := LoadSigner(in)
		if err != nil {
			t.Fatalf("load %q: %v", in, err)
		}
		if s2.Address() != s1.Address() {
			t.Errorf("address = %s, want %s", s2.Address().Hex(), s1.Address().Hex())
		}
	}
}

func TestLoadSignerRejectsBadKeys(t *testing.T) {
	for _, in := range []string{"", "0x", "zz", "0x1234"} {
		if _, err := LoadSigner(in); !errors.Is(err, ErrMissingCredential) {
			t.Errorf("LoadSigner(%q) err = %v, want ErrMissingCredential", in, err)
		}
	}
}

func TestSignAndVerify(t *testing.T) {
	s, _ := GenerateSigner()
	payload := []byte(`{"client_order_id":"1"}`)
	sig, err := s.Sign(payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if raw, _ := hexutil.Decode(sig); len(raw) != 65 {
		t.Errorf("signature length = %d, want 65", len(raw))
	}
	if !VerifySignature(payload, sig, s.Address()) {
		t.Error("signature verification failed")
	}
	if VerifySignature([]byte("tampered"), sig, s.Address()) {
		t.Error("tampered payload verified")
	}
	if VerifySignature(payload, sig, common.HexToAddress("0x0000000000000000000000000000000000000001")) {
		t.Error("wrong address verified")
	}
	if VerifySignature(payload, "0xdead", s.Address()) {
		t.Error("short signature verified")
	}
}
