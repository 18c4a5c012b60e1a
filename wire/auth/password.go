package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when a username does not exist, so a lookup
// miss costs the same bcrypt verification as a wrong password. Computed once
// from a value no client can guess usefully.
var (
	dummyHash     []byte
	dummyHashOnce sync.Once
)

func getDummyHash() []byte {
	dummyHashOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("r2db2-no-such-user"), bcrypt.DefaultCost)
		if err != nil {
			panic(err)
		}
		dummyHash = h
	})
	return dummyHash
}

// validatePassword verifies a password against the stored hash. A missing
// username and a wrong password take the same code path and yield the same
// reason, so clients cannot enumerate usernames by response or by timing.
func (a *Authenticator) validatePassword(username string, password []byte) (bool, Reason) {
	hash, found := a.store.LookupHash(username)
	if !found {
		hash = getDummyHash()
	}

	err := bcrypt.CompareHashAndPassword(hash, password)
	if err != nil || !found {
		return false, ReasonBadCredentials
	}
	return true, ReasonNone
}

// HashPassword produces a bcrypt hash suitable for an ICredentialStore
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// --------------------------------------------------------------------------
// Static credential store
// --------------------------------------------------------------------------

// StaticCredentialStore is an in-memory ICredentialStore for deployments
// that configure users up front (and for tests). Production systems plug in
// their own store implementation.
type StaticCredentialStore struct {
	hashes map[string][]byte
}

// NewStaticCredentialStore hashes the given plaintext credentials and
// returns a store over them
func NewStaticCredentialStore(users map[string]string) (*StaticCredentialStore, error) {
	hashes := make(map[string][]byte, len(users))
	for user, password := range users {
		h, err := HashPassword(password)
		if err != nil {
			return nil, err
		}
		hashes[user] = h
	}
	return &StaticCredentialStore{hashes: hashes}, nil
}

// LookupHash implements ICredentialStore
func (s *StaticCredentialStore) LookupHash(username string) ([]byte, bool) {
	h, ok := s.hashes[username]
	return h, ok
}
