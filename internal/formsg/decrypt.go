package formsg

import (
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/nacl/box"
)

// DecryptionError describes why encryptedContent could not be opened. It is
// recorded on the Submission and logged; it never fails a request.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("formsg: decrypt: %s: %v", e.Reason, e.Err)
	}
	return "formsg: decrypt: " + e.Reason
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// Decrypter opens FormSG storage-mode payloads with the form's secret key.
//
// Ciphertexts have the form "<submissionPublicKey>;<nonce>:<box>", each part
// standard base64, sealed with NaCl box (Curve25519, XSalsa20-Poly1305).
// Version 1 payloads are sealed to the form key directly. Version 3 payloads
// seal a per-submission secret key to the form key and the content to that
// submission key.
type Decrypter struct {
	key [32]byte
}

// NewDecrypter parses a base64 form secret key.
func NewDecrypter(secretKey string) (*Decrypter, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(secretKey))
	if err != nil {
		return nil, fmt.Errorf("formsg: decoding secret key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("formsg: secret key is %d bytes, want 32", len(raw))
	}
	d := &Decrypter{}
	copy(d.key[:], raw)
	return d, nil
}

// Decrypt returns the plaintext of encryptedContent. encryptedSubmissionKey
// is empty for version 1 payloads.
func (d *Decrypter) Decrypt(encryptedContent, encryptedSubmissionKey string) ([]byte, error) {
	key := &d.key
	if encryptedSubmissionKey != "" {
		subKey, err := openBox(key, encryptedSubmissionKey)
		if err != nil {
			return nil, &DecryptionError{Reason: "opening submission key", Err: err}
		}
		if len(subKey) != 32 {
			return nil, &DecryptionError{Reason: fmt.Sprintf("submission key is %d bytes", len(subKey))}
		}
		var k [32]byte
		copy(k[:], subKey)
		key = &k
	}

	plain, err := openBox(key, encryptedContent)
	if err != nil {
		return nil, &DecryptionError{Reason: "opening content", Err: err}
	}
	return plain, nil
}

func openBox(key *[32]byte, encoded string) ([]byte, error) {
	pubPart, rest, ok := strings.Cut(encoded, ";")
	if !ok {
		return nil, fmt.Errorf("missing ';' separator")
	}
	noncePart, boxPart, ok := strings.Cut(rest, ":")
	if !ok {
		return nil, fmt.Errorf("missing ':' separator")
	}

	pub, err := decodeFixed(pubPart, 32)
	if err != nil {
		return nil, fmt.Errorf("public key: %w", err)
	}
	nonce, err := decodeFixed(noncePart, 24)
	if err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(boxPart)
	if err != nil {
		return nil, fmt.Errorf("ciphertext: %w", err)
	}

	var (
		peer [32]byte
		n    [24]byte
	)
	copy(peer[:], pub)
	copy(n[:], nonce)

	plain, ok := box.Open(nil, sealed, &n, &peer, key)
	if !ok {
		return nil, fmt.Errorf("authentication failed")
	}
	return plain, nil
}

func decodeFixed(s string, size int) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != size {
		return nil, fmt.Errorf("got %d bytes, want %d", len(b), size)
	}
	return b, nil
}
