package hooks

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/tidwall/gjson"

	"github.com/fyrsmithlabs/membank/internal/config"
)

const sha256Tag = "sha256"

// SignatureHeaders are the HTTP headers checked for a webhook signature.
var SignatureHeaders = []string{"X-Hub-Signature-256", "X-Signature-256"}

// signatureFields are payload keys that may carry the signature.
var signatureFields = []string{"signature", "x-signature-256"}

// Verifier checks HMAC-SHA256 signatures on webhook payloads. Without a
// secret every payload is accepted.
type Verifier struct {
	secret    config.Secret
	envKeys   []string
	lookupEnv func(string) (string, bool)
}

// NewVerifier creates a verifier for secret. envKeys name environment
// variables that may carry the signature header value.
func NewVerifier(secret config.Secret, envKeys []string) *Verifier {
	return &Verifier{
		secret:    secret,
		envKeys:   envKeys,
		lookupEnv: os.LookupEnv,
	}
}

// Enabled reports whether a secret is configured.
func (v *Verifier) Enabled() bool {
	return v != nil && v.secret.IsSet()
}

// Verify checks the signature over raw, looked up from headers, then the
// environment, then the payload itself. The environment is only consulted
// when headers is nil, so an HTTP delivery never picks up a signature from
// the receiver's own process.
func (v *Verifier) Verify(raw []byte, payload gjson.Result, headers http.Header) error {
	if !v.Enabled() {
		return nil
	}

	signature := v.findSignature(payload, headers)
	if signature == "" {
		return fmt.Errorf("%w: missing signature", ErrSignatureRejected)
	}

	normalized, err := normalizeSignature(signature)
	if err != nil {
		return err
	}
	if err := github.ValidateSignature(normalized, raw, []byte(v.secret.Value())); err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureRejected, err)
	}
	return nil
}

func (v *Verifier) findSignature(payload gjson.Result, headers http.Header) string {
	for _, h := range SignatureHeaders {
		if sig := strings.TrimSpace(headers.Get(h)); sig != "" {
			return sig
		}
	}
	if headers == nil {
		for _, key := range v.envKeys {
			if sig, ok := v.lookupEnv(key); ok && strings.TrimSpace(sig) != "" {
				return strings.TrimSpace(sig)
			}
		}
	}
	return strings.TrimSpace(stringAt(payload, signatureFields...))
}

// normalizeSignature accepts "sha256=<hex>" or bare hex and rejects any
// other algorithm tag.
func normalizeSignature(sig string) (string, error) {
	tag, digest, found := strings.Cut(sig, "=")
	if !found {
		return sha256Tag + "=" + sig, nil
	}
	if !strings.EqualFold(tag, sha256Tag) {
		return "", fmt.Errorf("%w: unsupported algorithm %q", ErrSignatureRejected, tag)
	}
	return sha256Tag + "=" + digest, nil
}
