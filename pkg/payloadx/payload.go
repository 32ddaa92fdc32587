// Package payloadx implements the encrypted request envelope used for
// sensitive privileged mutations.
//
// The symmetric key is derived as SHA-256(token) and used directly as AES-256
// key material. That makes the key a deterministic function of the per-path
// anti-forgery token rather than an independently provisioned secret: anyone
// holding the plaintext token can derive the key. The envelope is therefore a
// defense-in-depth layer on top of transport security and the separate request
// signature, not a substitute for either.
package payloadx

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const ivSize = 12 // AES-GCM standard nonce size

// Header is set on requests whose body carries an Envelope, so the server can
// dispatch to the matching decryption path.
const (
	Header = "X-Payload-Encrypted"
	Scheme = "aes-gcm"
)

var (
	ErrMalformed = errors.New("payloadx: malformed encrypted payload")
	ErrDecrypt   = errors.New("payloadx: unable to decrypt payload")
)

// deriveKey turns the anti-forgery token into raw AES-256 key material.
func deriveKey(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return sum[:]
}

// Encrypt serialises v as compact JSON and seals it with AES-256-GCM under a
// key derived from token. The result is "<iv>.<ciphertext>" with both
// segments base64url-encoded without padding. A fresh 12-byte IV is drawn per
// call, so encrypting the same value twice never yields the same output.
func Encrypt(v any, token string) (string, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("payloadx: marshal plaintext: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(token))
	if err != nil {
		return "", err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("payloadx: draw iv: %w", err)
	}

	ciphertext := aead.Seal(nil, iv, plaintext, nil)

	return base64.RawURLEncoding.EncodeToString(iv) + "." +
		base64.RawURLEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt, unmarshalling the recovered JSON into out.
func Decrypt(envelope, token string, out any) error {
	iv, ciphertext, err := splitSegments(envelope)
	if err != nil {
		return err
	}

	block, err := aes.NewCipher(deriveKey(token))
	if err != nil {
		return err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}

	plaintext, err := aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return ErrDecrypt
	}

	if err := json.Unmarshal(plaintext, out); err != nil {
		return fmt.Errorf("payloadx: decrypted payload is not valid JSON: %w", err)
	}
	return nil
}

func splitSegments(envelope string) (iv, ciphertext []byte, err error) {
	ivSeg, ctSeg, ok := strings.Cut(envelope, ".")
	if !ok {
		return nil, nil, ErrMalformed
	}

	iv, err = decodeSegment(ivSeg)
	if err != nil || len(iv) != ivSize {
		return nil, nil, ErrMalformed
	}
	ciphertext, err = decodeSegment(ctSeg)
	if err != nil {
		return nil, nil, ErrMalformed
	}
	return iv, ciphertext, nil
}

// decodeSegment accepts both padded and unpadded base64url for compatibility
// with older clients that emitted padded segments.
func decodeSegment(s string) ([]byte, error) {
	if b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "=")); err == nil {
		return b, nil
	}
	return base64.URLEncoding.DecodeString(s)
}
