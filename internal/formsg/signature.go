package formsg

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

// SignatureHeader carries the HMAC of the raw request body.
const SignatureHeader = "X-FormSG-Signature"

var (
	ErrMissingSignature  = errors.New("formsg: signature header missing")
	ErrSignatureMismatch = errors.New("formsg: signature mismatch")
)

// Sign returns the lowercase hex HMAC-SHA256 of body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the HMAC-SHA256 of body. Accepted
// header forms: a bare hex or base64 digest, "sha256=<digest>", or a
// comma-separated list carrying "v1=<digest>".
func VerifySignature(secret, body []byte, header string) error {
	digest := signatureDigest(header)
	if digest == "" {
		return ErrMissingSignature
	}

	got, err := hex.DecodeString(digest)
	if err != nil {
		if got, err = base64.StdEncoding.DecodeString(digest); err != nil {
			return ErrSignatureMismatch
		}
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrSignatureMismatch
	}
	return nil
}

func signatureDigest(header string) string {
	header = strings.TrimSpace(header)
	if d, ok := strings.CutPrefix(header, "sha256="); ok {
		return strings.TrimSpace(d)
	}
	if strings.HasPrefix(header, "v1=") || strings.Contains(header, ",") {
		for _, part := range strings.Split(header, ",") {
			if d, ok := strings.CutPrefix(strings.TrimSpace(part), "v1="); ok {
				return d
			}
		}
		return ""
	}
	return header
}
