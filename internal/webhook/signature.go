// Package webhook verifies and classifies incoming GitHub deliveries.
package webhook

import (
	"encoding/json"
	"strings"

	"github.com/google/go-github/v73/github"

	"github.com/devasignhq/devasign-api-sub002/internal/core"
)

const signaturePrefix = "sha256="

// Verifier checks X-Hub-Signature-256 headers against the configured webhook secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify computes HMAC-SHA256 over payload and compares it with the header in
// constant time. payload must be the exact bytes received on the wire.
func (v *Verifier) Verify(payload []byte, signatureHeader string) error {
	if len(v.secret) == 0 {
		return core.NewError(core.KindConfiguration, "webhook secret is not configured", nil)
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return core.NewError(core.KindMissingSignature, "missing X-Hub-Signature-256 header", nil)
	}
	// An empty body means the raw bytes were consumed upstream. Never compare
	// against a re-serialized payload.
	if len(payload) == 0 {
		return core.NewError(core.KindMalformedPayload, "raw request body unavailable", nil)
	}
	if !strings.HasPrefix(signatureHeader, signaturePrefix) || len(signatureHeader) == len(signaturePrefix) {
		return core.NewError(core.KindInvalidSignature, "signature header must have the form sha256=<hex>", nil)
	}

	if err := github.ValidateSignature(signatureHeader, payload, v.secret); err != nil {
		return core.NewError(core.KindInvalidSignature, "webhook signature mismatch", err)
	}
	return nil
}

// VerifyAndParse verifies the signature, then decodes the body as a JSON object.
func (v *Verifier) VerifyAndParse(payload []byte, signatureHeader string) (map[string]any, error) {
	if err := v.Verify(payload, signatureHeader); err != nil {
		return nil, err
	}

	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, core.NewError(core.KindMalformedPayload, "webhook body is not a JSON object", err)
	}
	return body, nil
}
