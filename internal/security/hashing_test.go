package security

import "testing"

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(4) // min cost keeps the test fast
	digest, err := h.Hash([]byte("Secur3Pass!"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if digest == "" || digest == "Secur3Pass!" {
		t.Fatal("digest empty or equal to plaintext")
	}
	if !h.Verify([]byte("Secur3Pass!"), digest) {
		t.Error("Verify should accept the correct password")
	}
	if h.Verify([]byte("wrong-password"), digest) {
		t.Error("Verify should reject a wrong password")
	}
}

func TestHasher_SaltedDigests(t *testing.T) {
	h := NewHasher(4)
	d1, err := h.Hash([]byte("same-password"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	d2, err := h.Hash([]byte("same-password"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if d1 == d2 {
		t.Error("two hashes of the same password should differ (salting)")
	}
}

func TestNewHasher_ClampsCost(t *testing.T) {
	if h := NewHasher(-1); h.cost <= 0 {
		t.Errorf("cost = %d, want positive default", h.cost)
	}
	if h := NewHasher(99); h.cost > 31 {
		t.Errorf("cost = %d, want clamped to bcrypt max", h.cost)
	}
}
