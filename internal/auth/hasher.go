package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is a bcrypt digest of an unguessable constant. Compare against it
// when no account was found so the unknown-email path costs the same as a
// wrong-password path and does not leak account existence through timing.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// Hasher performs one-way credential hashing for passwords and OTP codes.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using the given bcrypt cost, or the library
// default when cost is zero.
func NewHasher(cost int) Hasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return Hasher{cost: cost}
}

// Hash returns the salted digest of plaintext. Two calls with the same input
// produce different digests; equality is only meaningful through Compare.
func (h Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", errors.New("auth: nothing to hash")
	}
	sum, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(sum), nil
}

// Compare reports whether plaintext hashes to hash under the stored
// parameters.
func (h Hasher) Compare(plaintext, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// CompareDummy burns an equivalent-cost comparison without a real hash.
// It always reports false.
func (h Hasher) CompareDummy(plaintext string) bool {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(plaintext))
	return false
}
