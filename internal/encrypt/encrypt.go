// Package encrypt seals the sensitive fields of a backend config
// before it is written to a store.
package encrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/pkg/errors"
)

// Prefix marks a sealed field value.
const Prefix = "enc:v1:"

// Sealer encrypts the string fields selected by a predicate with
// AES-GCM. A Sealer without a passphrase stores fields as they are
// but still refuses to hand out sealed values it can't open.
type Sealer struct {
	aead      cipher.AEAD
	sensitive func(string) bool
}

// NewSealer derives the AES-256 key from passphrase. An empty
// passphrase disables sealing.
func NewSealer(passphrase string, sensitive func(string) bool) (*Sealer, error) {
	if sensitive == nil {
		return nil, errors.New("sensitive field predicate is required")
	}
	s := &Sealer{sensitive: sensitive}
	if passphrase == "" {
		return s, nil
	}
	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.Wrapf(err, "error creating cipher")
	}
	if s.aead, err = cipher.NewGCM(block); err != nil {
		return nil, errors.Wrapf(err, "error creating cipher")
	}
	return s, nil
}

// Enabled reports whether fields get sealed.
func (s *Sealer) Enabled() bool {
	return s.aead != nil
}

// SealFields returns a copy of fields with every sensitive string
// value sealed. Nested maps are walked. The input is not modified.
func (s *Sealer) SealFields(fields map[string]any) (map[string]any, error) {
	if !s.Enabled() || fields == nil {
		return fields, nil
	}
	result := make(map[string]any, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			if s.sensitive(k) {
				sealed, err := s.seal(val)
				if err != nil {
					return nil, errors.Wrapf(err, "error encrypting %s", k)
				}
				v = sealed
			}
		case map[string]any:
			nested, err := s.SealFields(val)
			if err != nil {
				return nil, err
			}
			v = nested
		}
		result[k] = v
	}
	return result, nil
}

// OpenFields reverses SealFields. Only sensitive fields are opened,
// so a value that merely looks sealed in any other field is kept.
// Sensitive values stored before sealing was enabled come back as
// they are.
func (s *Sealer) OpenFields(fields map[string]any) (map[string]any, error) {
	if fields == nil {
		return nil, nil
	}
	result := make(map[string]any, len(fields))
	for k, v := range fields {
		switch val := v.(type) {
		case string:
			if !s.sensitive(k) || !strings.HasPrefix(val, Prefix) {
				break
			}
			if !s.Enabled() {
				return nil, errors.Errorf("%s is encrypted but no encryption key is set", k)
			}
			plain, err := s.open(val)
			if err != nil {
				return nil, errors.Wrapf(err, "error decrypting %s", k)
			}
			v = plain
		case map[string]any:
			nested, err := s.OpenFields(val)
			if err != nil {
				return nil, err
			}
			v = nested
		}
		result[k] = v
	}
	return result, nil
}

func (s *Sealer) seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return Prefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *Sealer) open(value string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, Prefix))
	if err != nil {
		return "", err
	}
	n := s.aead.NonceSize()
	if len(data) < n {
		return "", errors.New("invalid ciphertext")
	}
	plain, err := s.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
