// Package hasher is the credential-verification capability behind
// administrator setup and login. The directory stores only the hash and
// asks Compare on every login; nothing else in the system sees a password.
package hasher

import (
	"github.com/ImagingSolutions/UsageMonitor/ports"
	"golang.org/x/crypto/bcrypt"
)

// Bcrypt hashes with bcrypt at the cost set by admin.bcrypt_cost.
type Bcrypt struct {
	cost int
}

// NewBcrypt creates a bcrypt hasher. An out-of-range cost falls back to
// bcrypt.DefaultCost.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Hash fails for passwords longer than 72 bytes.
func (h *Bcrypt) Hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
}

func (h *Bcrypt) Compare(hash []byte, plaintext string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plaintext)) == nil
}

var _ ports.Hasher = (*Bcrypt)(nil)

// Fake stores plaintext (NOT FOR PRODUCTION). It keeps directory and
// management API tests fast where bcrypt would dominate the run time.
type Fake struct{}

func (Fake) Hash(plaintext string) ([]byte, error) {
	return []byte("fake:" + plaintext), nil
}

func (Fake) Compare(hash []byte, plaintext string) bool {
	return string(hash) == "fake:"+plaintext
}

var _ ports.Hasher = Fake{}
