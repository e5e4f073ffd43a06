package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher checks and produces bcrypt password hashes.
// A zero Cost means bcrypt.DefaultCost.
type BcryptHasher struct {
	Cost int
}

var (
	dummyOnce sync.Once
	dummyHash string
)

func (BcryptHasher) Compare(hashed, plain string) bool {
	if hashed == "" || plain == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

func (h BcryptHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DummyHash returns a hash of a random secret at the hasher's cost. Login
// compares against it when the principal does not exist, so response time
// does not reveal whether an email is registered.
func (h BcryptHasher) DummyHash() string {
	dummyOnce.Do(func() {
		buf := make([]byte, 16)
		_, _ = rand.Read(buf)
		b, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(buf)), h.cost())
		if err == nil {
			dummyHash = string(b)
		}
	})
	return dummyHash
}

func (h BcryptHasher) cost() int {
	if h.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return h.Cost
}
