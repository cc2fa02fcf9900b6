package hasher_test

import (
	"testing"

	"github.com/ImagingSolutions/UsageMonitor/adapters/hasher"
	"golang.org/x/crypto/bcrypt"
)

func TestBcrypt_RoundTrip(t *testing.T) {
	h := hasher.NewBcrypt(bcrypt.MinCost)

	hash, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if string(hash) == "correct horse" {
		t.Fatal("Hash() returned plaintext")
	}
	if !h.Compare(hash, "correct horse") {
		t.Error("Compare() with right password = false")
	}
	if h.Compare(hash, "wrong horse") {
		t.Error("Compare() with wrong password = true")
	}
}

func TestBcrypt_InvalidCostFallsBack(t *testing.T) {
	h := hasher.NewBcrypt(1000)
	hash, err := h.Hash("password1")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	cost, err := bcrypt.Cost(hash)
	if err != nil {
		t.Fatalf("Cost() error = %v", err)
	}
	if cost != bcrypt.DefaultCost {
		t.Errorf("cost = %d, want %d", cost, bcrypt.DefaultCost)
	}
}

func TestFake(t *testing.T) {
	h := hasher.Fake{}
	hash, _ := h.Hash("pw")
	if !h.Compare(hash, "pw") || h.Compare(hash, "other") {
		t.Error("Fake compare mismatch")
	}
}
