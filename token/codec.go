package token

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Claims is the payload of a handoff token. It is signed, not encrypted.
type Claims struct {
	SubjectID     int64  `json:"subject_id"`
	SubjectLogin  string `json:"subject_login"`
	SubjectRole   string `json:"subject_role"`
	TargetSurface string `json:"target_surface"`
	IssuedAt      int64  `json:"issued_at"`
	ExpiresAt     int64  `json:"expires_at"`
	Nonce         string `json:"nonce,omitempty"`
}

// wireClaims uses pointers so absent fields can be told apart from zero values.
type wireClaims struct {
	SubjectID     *int64  `json:"subject_id"`
	SubjectLogin  *string `json:"subject_login"`
	SubjectRole   *string `json:"subject_role"`
	TargetSurface *string `json:"target_surface"`
	IssuedAt      *int64  `json:"issued_at"`
	ExpiresAt     *int64  `json:"expires_at"`
	Nonce         string  `json:"nonce"`
}

func (w *wireClaims) complete() bool {
	return w.SubjectID != nil && w.SubjectLogin != nil && w.SubjectRole != nil &&
		w.TargetSurface != nil && w.IssuedAt != nil && w.ExpiresAt != nil
}

var payloadEncoding = base64.RawURLEncoding.Strict()

// Codec serializes Claims as base64url(json) "." hex(mac).
type Codec struct {
	signer Signer
	logger zerolog.Logger
}

type CodecOption func(*Codec)

func WithLogger(logger zerolog.Logger) CodecOption {
	return func(c *Codec) {
		c.logger = logger
	}
}

func NewCodec(signer Signer, options ...CodecOption) (*Codec, error) {
	if signer == nil {
		return nil, errors.New("[NewCodec] signer is required")
	}
	c := &Codec{signer: signer, logger: log.Logger}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// Encode signs the JSON encoding of claims. The MAC covers exactly the bytes that are
// base64url-encoded into the first segment.
func (c *Codec) Encode(claims Claims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", errors.Wrap(err, "[Codec.Encode] marshal claims")
	}
	mac, err := c.signer.Sign(payload)
	if err != nil {
		return "", errors.Wrap(err, "[Codec.Encode]")
	}
	return payloadEncoding.EncodeToString(payload) + "." + hex.EncodeToString(mac), nil
}

// Decode checks the structure and signature of raw and returns its claims. Every failure wraps
// ErrInvalidToken; the distinction between ErrMalformed and ErrSignatureMismatch is for logs only.
// Decode does not check expiry or audience.
func (c *Codec) Decode(raw string) (Claims, error) {
	claims, err := c.decode(raw)
	if err != nil {
		c.logger.Debug().Err(err).Int("length", len(raw)).Msg("token rejected")
		return Claims{}, err
	}
	return claims, nil
}

func (c *Codec) decode(raw string) (Claims, error) {
	segments := strings.Split(raw, ".")
	if len(segments) != 2 || segments[0] == "" || segments[1] == "" {
		return Claims{}, errors.Wrap(ErrMalformed, "expected two segments")
	}

	payload, err := payloadEncoding.DecodeString(segments[0])
	if err != nil {
		return Claims{}, errors.Wrap(ErrMalformed, "payload encoding")
	}

	mac, err := hex.DecodeString(segments[1])
	// only the lowercase form is produced, so any other spelling is a different token
	if err != nil || hex.EncodeToString(mac) != segments[1] {
		return Claims{}, errors.Wrap(ErrMalformed, "signature encoding")
	}

	if err := c.signer.Verify(payload, mac); err != nil {
		if errors.Is(err, ErrSignatureMismatch) {
			return Claims{}, ErrSignatureMismatch
		}
		return Claims{}, errors.Wrap(err, "[Codec.Decode] verify")
	}

	var wire wireClaims
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(&wire); err != nil {
		return Claims{}, errors.Wrap(ErrMalformed, "payload json")
	}
	if dec.More() {
		return Claims{}, errors.Wrap(ErrMalformed, "trailing data after payload")
	}
	if !wire.complete() {
		return Claims{}, errors.Wrap(ErrMalformed, "missing required claim")
	}

	return Claims{
		SubjectID:     *wire.SubjectID,
		SubjectLogin:  *wire.SubjectLogin,
		SubjectRole:   *wire.SubjectRole,
		TargetSurface: *wire.TargetSurface,
		IssuedAt:      *wire.IssuedAt,
		ExpiresAt:     *wire.ExpiresAt,
		Nonce:         wire.Nonce,
	}, nil
}
