package security

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	code := []byte("123456")
	hash, err := h.Hash(code)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" || hash == "123456" {
		t.Fatalf("Hash = %q, want bcrypt hash", hash)
	}
	if err := h.Compare(hash, code); err != nil {
		t.Fatalf("Compare: %v", err)
	}
}

func TestHasher_CompareWrongCode(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	hash, _ := h.Hash([]byte("123456"))
	err := h.Compare(hash, []byte("654321"))
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		t.Fatalf("Compare wrong code: got %v, want ErrMismatchedHashAndPassword", err)
	}
}

func TestHasher_CompareMalformedHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	if err := h.Compare("not-a-hash", []byte("123456")); err == nil {
		t.Fatal("Compare with malformed hash should fail")
	}
}

func TestNewHasher_Cost(t *testing.T) {
	testCases := []struct {
		in, want int
	}{
		{0, bcrypt.DefaultCost},
		{-1, bcrypt.DefaultCost},
		{2, bcrypt.MinCost},
		{12, 12},
		{40, bcrypt.MaxCost},
	}
	for _, tc := range testCases {
		if got := NewHasher(tc.in).Cost; got != tc.want {
			t.Errorf("NewHasher(%d).Cost = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"+15551234567", "***-4567"},
		{"1234", "***"},
		{"", "***"},
	}
	for _, tc := range testCases {
		if got := MaskPhone(tc.in); got != tc.want {
			t.Errorf("MaskPhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
