// Package formsg turns FormSG webhook deliveries into registrants.
//
// FormSG has delivered the same form in several shapes over time: a plain
// responses array, responses nested under "data", an encrypted envelope
// (whose version 3 content is a map of field records), or a flat object.
// Processing is best-effort. Signature failures are the only hard rejection;
// a payload that cannot be decrypted or parsed still produces a registrant,
// completed by the configured PlaceholderPolicy.
package formsg

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Config controls verification and decryption. Both secrets are optional.
type Config struct {
	WebhookSecret string // HMAC key; empty disables signature checks
	SecretKey     string // base64 form secret key; empty disables decryption
	Placeholder   PlaceholderPolicy
	Chain         []Parser
}

// Processor is safe for concurrent use.
type Processor struct {
	webhookSecret []byte
	decrypter     *Decrypter
	placeholder   PlaceholderPolicy
	chain         []Parser
}

// NewProcessor fails only when a configured secret key is malformed.
func NewProcessor(cfg Config) (*Processor, error) {
	p := &Processor{
		placeholder: cfg.Placeholder,
		chain:       cfg.Chain,
	}
	if cfg.WebhookSecret != "" {
		p.webhookSecret = []byte(cfg.WebhookSecret)
	}
	if cfg.SecretKey != "" {
		d, err := NewDecrypter(cfg.SecretKey)
		if err != nil {
			return nil, err
		}
		p.decrypter = d
	}
	if p.placeholder == nil {
		p.placeholder = DefaultPlaceholder
	}
	if p.chain == nil {
		p.chain = DefaultChain
	}
	return p, nil
}

// VerifiesSignatures reports whether a webhook secret is configured.
func (p *Processor) VerifiesSignatures() bool {
	return p.webhookSecret != nil
}

// Verify checks the signature header. Without a secret every request passes.
func (p *Processor) Verify(body []byte, header string) error {
	if p.webhookSecret == nil {
		return nil
	}
	return VerifySignature(p.webhookSecret, body, header)
}

// Submission is a processed webhook delivery.
type Submission struct {
	FormID       string
	SubmissionID string
	Raw          map[string]any // payload as received, for audit
	Attempt      ParseAttempt
	Registrant   Registrant
	Decrypted    bool
	Degraded     bool    // the placeholder policy had to fill something in
	Problems     []error // recovered decode and decrypt failures
}

// Process never fails; problems are reported on the Submission.
func (p *Processor) Process(body []byte) *Submission {
	sub := &Submission{}

	raw, err := decodePayload(body)
	if err != nil {
		sub.Problems = append(sub.Problems, fmt.Errorf("formsg: decoding body: %w", err))
		raw = map[string]any{}
	}
	sub.Raw = raw
	sub.FormID = envelopeString(raw, "formId")
	sub.SubmissionID = envelopeString(raw, "submissionId")

	working := raw
	if content := envelopeString(raw, "encryptedContent"); content != "" {
		responses, decrypted, problems := p.openContent(content, envelopeString(raw, "encryptedSubmissionSecretKey"))
		sub.Problems = append(sub.Problems, problems...)
		sub.Decrypted = decrypted
		if responses != nil {
			working = withResponses(raw, responses)
		}
	}

	sub.Attempt = Normalize(working, p.chain)
	sub.Registrant = Extract(sub.Attempt, working)
	sub.Degraded = p.placeholder(&sub.Registrant)
	return sub
}

// openContent decrypts content when a key is configured and otherwise, or on
// failure, tries it as plain JSON.
func (p *Processor) openContent(content, submissionKey string) (responses any, decrypted bool, problems []error) {
	if p.decrypter != nil {
		plain, err := p.decrypter.Decrypt(content, submissionKey)
		if err == nil {
			var v any
			if err := json.Unmarshal(plain, &v); err == nil {
				return v, true, nil
			}
			problems = append(problems, &DecryptionError{Reason: "decrypted content is not JSON", Err: err})
		} else {
			problems = append(problems, err)
		}
	}

	var v any
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		if p.decrypter != nil {
			problems = append(problems, fmt.Errorf("formsg: encryptedContent is not JSON either: %w", err))
		}
		return nil, false, problems
	}
	return v, false, problems
}

// withResponses returns a shallow copy of raw with decrypted content exposed
// where the parsers look for it.
func withResponses(raw map[string]any, content any) map[string]any {
	out := make(map[string]any, len(raw)+1)
	for k, v := range raw {
		out[k] = v
	}
	switch c := content.(type) {
	case []any:
		out["responses"] = c
	case map[string]any:
		if list, ok := c["responses"].([]any); ok {
			out["responses"] = list
		} else {
			out["data"] = c
		}
	}
	return out
}

// decodePayload accepts a JSON object, or a bare array treated as responses.
func decodePayload(body []byte) (map[string]any, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case map[string]any:
		return x, nil
	case []any:
		return map[string]any{"responses": x}, nil
	default:
		return nil, fmt.Errorf("unexpected JSON %T", v)
	}
}

// envelopeString reads key from the top level, then from a nested data object.
func envelopeString(raw map[string]any, key string) string {
	if s, ok := raw[key].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	if data, ok := raw["data"].(map[string]any); ok {
		if s, ok := data[key].(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
