package crypto

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestKeystoreRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "operator", "key.json")

	if err := SaveToKeystore(path, key, "open sesame"); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadFromKeystore(path, "open sesame")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(loaded.Bytes(), key.Bytes()) {
		t.Fatal("loaded key differs from saved key")
	}
	if _, err := LoadFromKeystore(path, "wrong"); err == nil {
		t.Fatal("wrong passphrase must not decrypt")
	}
}

func TestKeystoreRejectsBadInputs(t *testing.T) {
	if err := SaveToKeystore("", nil, "pw"); err == nil {
		t.Fatal("nil key accepted")
	}
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if err := SaveToKeystore("", key, "pw"); err == nil {
		t.Fatal("empty path accepted")
	}
	if _, err := LoadFromKeystore("", "pw"); err == nil {
		t.Fatal("empty path accepted on load")
	}
}
