// Package fieldcipher provides authenticated encryption for single field
// values. Each field is sealed with AES-256-GCM under a fresh random nonce,
// with the owning record ID and field name bound as associated data so an
// envelope cannot be replayed into a different field or record.
package fieldcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"

	dErrors "custodia/pkg/domain-errors"
)

const (
	// KeySize is the required key length in bytes (AES-256).
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes.
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes.
	TagSize = 16
)

// Envelope is the ciphertext bundle for one encrypted field. It is opaque
// outside this package; callers store and move envelopes without being able
// to inspect or recombine their parts.
type Envelope struct {
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
}

// wireEnvelope is the storage/wire JSON shape.
type wireEnvelope struct {
	EncryptedData string `json:"encryptedData"`
	IV            string `json:"iv"`
	AuthTag       string `json:"authTag"`
}

// MarshalJSON encodes the envelope in its wire form with base64 fields.
func (e Envelope) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEnvelope{
		EncryptedData: base64.StdEncoding.EncodeToString(e.Ciphertext),
		IV:            base64.StdEncoding.EncodeToString(e.Nonce),
		AuthTag:       base64.StdEncoding.EncodeToString(e.Tag),
	})
}

// UnmarshalJSON decodes the wire form. Malformed base64 is a validation
// error; authenticity is only established later by Decrypt.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return dErrors.New(dErrors.CodeValidation, "malformed envelope")
	}
	var err error
	if e.Ciphertext, err = base64.StdEncoding.DecodeString(w.EncryptedData); err != nil {
		return dErrors.New(dErrors.CodeValidation, "malformed envelope")
	}
	if e.Nonce, err = base64.StdEncoding.DecodeString(w.IV); err != nil {
		return dErrors.New(dErrors.CodeValidation, "malformed envelope")
	}
	if e.Tag, err = base64.StdEncoding.DecodeString(w.AuthTag); err != nil {
		return dErrors.New(dErrors.CodeValidation, "malformed envelope")
	}
	return nil
}

// associatedData binds an envelope to its record and field so GCM rejects
// cross-field or cross-record replay.
func associatedData(recordID, field string) []byte {
	return fmt.Appendf(nil, "%d|%s|%d|%s", len(recordID), recordID, len(field), field)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, dErrors.New(dErrors.CodeValidation, "field key must be 256 bits")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not construct cipher")
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under key for the given record and field.
// A new random nonce is generated for every call.
func Encrypt(plaintext, key []byte, recordID, field string) (Envelope, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return Envelope{}, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not generate nonce")
	}

	sealed := aead.Seal(nil, nonce, plaintext, associatedData(recordID, field))

	// GCM appends the tag to the ciphertext; keep the parts separate so the
	// wire format can carry them as distinct fields.
	split := len(sealed) - TagSize
	return Envelope{
		Ciphertext: sealed[:split],
		Nonce:      nonce,
		Tag:        sealed[split:],
	}, nil
}

// Decrypt opens an envelope produced by Encrypt. Any tag mismatch, including
// a single flipped bit in ciphertext, nonce, or tag, or an envelope presented
// for the wrong record or field, yields a single authentication failure with
// no partial plaintext. The error message carries no ciphertext material.
func Decrypt(env Envelope, key []byte, recordID, field string) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(env.Nonce) != NonceSize {
		return nil, dErrors.New(dErrors.CodeAuthFailure, "decryption failed")
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.Tag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)

	plaintext, err := aead.Open(nil, env.Nonce, sealed, associatedData(recordID, field))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeAuthFailure, "decryption failed")
	}
	return plaintext, nil
}
