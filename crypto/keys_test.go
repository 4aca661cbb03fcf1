package crypto

import (
	"bytes"
	"strings"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	addr := NewAddress(UserPrefix, raw)
	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(UserPrefix)+"1") {
		t.Fatalf("encoded address %q missing prefix", encoded)
	}
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("round trip mismatch: %q vs %q", decoded.String(), encoded)
	}
	if decoded.Prefix() != UserPrefix {
		t.Fatalf("unexpected prefix %q", decoded.Prefix())
	}
}

func TestDecodeAddressRejectsBadInput(t *testing.T) {
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatal("expected error for malformed string")
	}
	// Valid bech32 but wrong payload length.
	short := NewAddress(ModulePrefix, make([]byte, 20))
	truncated := short.String()[:len(short.String())-10]
	if _, err := DecodeAddress(truncated); err == nil {
		t.Fatal("expected error for truncated address")
	}
}

func TestKeyDerivesUserAddress(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	addr := key.PubKey().Address()
	if addr.Prefix() != UserPrefix {
		t.Fatalf("derived address has prefix %q", addr.Prefix())
	}
	if addr.IsZero() {
		t.Fatal("derived address is zero")
	}

	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !bytes.Equal(restored.PubKey().Address().Bytes(), addr.Bytes()) {
		t.Fatal("restored key derives a different address")
	}
}
