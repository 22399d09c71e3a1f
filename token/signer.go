package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Signer computes and checks message authentication codes over raw payload bytes.
type Signer interface {
	// Sign returns the MAC of payload
	Sign(payload []byte) ([]byte, error)

	// Verify checks mac against payload in constant time
	Verify(payload, mac []byte) error
}

// HMACSigner implements Signer using symmetric HMAC-SHA256
type HMACSigner struct {
	key    *SecretKey
	method *jwt.SigningMethodHMAC
}

var _ Signer = (*HMACSigner)(nil)

// NewHMACSigner creates a new HMAC signer over the given secret
func NewHMACSigner(key *SecretKey) *HMACSigner {
	return &HMACSigner{
		key:    key,
		method: jwt.SigningMethodHS256,
	}
}

func (h *HMACSigner) Sign(payload []byte) ([]byte, error) {
	var mac []byte
	err := h.key.Use(func(secret []byte) error {
		var err error
		mac, err = h.method.Sign(string(payload), secret)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to sign payload with HMAC")
	}
	return mac, nil
}

func (h *HMACSigner) Verify(payload, mac []byte) error {
	return h.key.Use(func(secret []byte) error {
		if err := h.method.Verify(string(payload), mac, secret); err != nil {
			return ErrSignatureMismatch
		}
		return nil
	})
}
