package token

import (
	"github.com/awnumar/memguard"
	"github.com/pkg/errors"
)

// MinSecretLength is the minimum shared secret size in bytes.
const MinSecretLength = 32

// SecretKey holds the shared signing secret encrypted in memory. It is decrypted into a locked
// buffer only for the duration of a MAC computation.
type SecretKey struct {
	enclave *memguard.Enclave
}

// NewSecretKey seals a copy of secret. The caller's slice is left untouched.
func NewSecretKey(secret []byte) (*SecretKey, error) {
	if len(secret) < MinSecretLength {
		return nil, errors.Wrapf(ErrSecretTooShort, "[NewSecretKey] got %d bytes, need %d", len(secret), MinSecretLength)
	}
	buf := make([]byte, len(secret))
	copy(buf, secret)
	// NewEnclave wipes buf
	return &SecretKey{enclave: memguard.NewEnclave(buf)}, nil
}

// Use opens the secret and passes it to fn. The plaintext is destroyed when fn returns and must
// not be retained.
func (k *SecretKey) Use(fn func(secret []byte) error) error {
	buf, err := k.enclave.Open()
	if err != nil {
		return errors.Wrap(err, "[SecretKey.Use] open enclave")
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}
