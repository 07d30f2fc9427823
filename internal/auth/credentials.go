package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Verifier decides whether a username/password pair may use the API.
type Verifier interface {
	Verify(username, password string) bool
}

// StaticCredentials is a fixed set of users with bcrypt-hashed passwords.
// A successful check is remembered for verifyTTL so repeated requests from
// the same client skip bcrypt.
type StaticCredentials struct {
	hashes map[string][]byte
	// compared against for unknown users so both paths cost one bcrypt run
	dummy []byte

	verifyTTL time.Duration
	now       func() time.Time

	mu       sync.Mutex
	verified map[string]verifiedPassword
}

type verifiedPassword struct {
	digest  [sha256.Size]byte
	expires time.Time
}

// NewStaticCredentials hashes the plain-text passwords in users. A zero
// verifyTTL disables remembering successful checks.
func NewStaticCredentials(users map[string]string, verifyTTL time.Duration) (*StaticCredentials, error) {
	if len(users) == 0 {
		return nil, errors.New("at least one user is required")
	}

	hashes := make(map[string][]byte, len(users))
	for name, password := range users {
		if name == "" {
			return nil, errors.New("empty username")
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %q: %w", name, err)
		}
		hashes[name] = hash
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("unknown-user"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}

	return &StaticCredentials{
		hashes:    hashes,
		dummy:     dummy,
		verifyTTL: verifyTTL,
		now:       time.Now,
		verified:  make(map[string]verifiedPassword),
	}, nil
}

func (s *StaticCredentials) Verify(username, password string) bool {
	hash, ok := s.hashes[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.dummy, []byte(password))
		return false
	}

	digest := sha256.Sum256([]byte(password))
	if s.recentlyVerified(username, digest) {
		return true
	}

	if bcrypt.CompareHashAndPassword(hash, []byte(password)) != nil {
		return false
	}

	s.remember(username, digest)
	return true
}

func (s *StaticCredentials) recentlyVerified(username string, digest [sha256.Size]byte) bool {
	if s.verifyTTL <= 0 {
		return false
	}

	s.mu.Lock()
	entry, ok := s.verified[username]
	s.mu.Unlock()

	return ok && s.now().Before(entry.expires) &&
		subtle.ConstantTimeCompare(entry.digest[:], digest[:]) == 1
}

func (s *StaticCredentials) remember(username string, digest [sha256.Size]byte) {
	if s.verifyTTL <= 0 {
		return
	}

	s.mu.Lock()
	s.verified[username] = verifiedPassword{digest: digest, expires: s.now().Add(s.verifyTTL)}
	s.mu.Unlock()
}

// ParseUsers reads "user:password,user2:password2". Passwords may contain
// colons; usernames may not.
func ParseUsers(raw string) (map[string]string, error) {
	users := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, password, ok := strings.Cut(entry, ":")
		if !ok || name == "" || password == "" {
			return nil, fmt.Errorf("malformed user entry %q", entry)
		}
		if _, dup := users[name]; dup {
			return nil, fmt.Errorf("duplicate user %q", name)
		}
		users[name] = password
	}

	if len(users) == 0 {
		return nil, errors.New("no users configured")
	}

	return users, nil
}
