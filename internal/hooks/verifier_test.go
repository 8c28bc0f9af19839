package hooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const testSecret = "s3cr3t"

var signedPayload = []byte(`{"type":"turn.completed","data":{"prompt":"ship it"}}`)

func sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func headerWith(sig string) http.Header {
	h := http.Header{}
	h.Set("X-Hub-Signature-256", sig)
	return h
}

// noEnv keeps the process environment out of lookup.
func noEnv(v *Verifier) *Verifier {
	v.lookupEnv = func(string) (string, bool) { return "", false }
	return v
}

func TestVerifier_AcceptsCorrectSignature(t *testing.T) {
	v := noEnv(NewVerifier(testSecret, nil))
	require.True(t, v.Enabled())

	sig := sign(testSecret, signedPayload)
	assert.NoError(t, v.Verify(signedPayload, gjson.ParseBytes(signedPayload), headerWith("sha256="+sig)))
	assert.NoError(t, v.Verify(signedPayload, gjson.ParseBytes(signedPayload), headerWith(sig)), "bare hex")
	assert.NoError(t, v.Verify(signedPayload, gjson.ParseBytes(signedPayload), headerWith("SHA256="+sig)))
}

func TestVerifier_RejectsPayloadMutation(t *testing.T) {
	v := noEnv(NewVerifier(testSecret, nil))
	sig := "sha256=" + sign(testSecret, signedPayload)

	for i := range signedPayload {
		mutated := append([]byte(nil), signedPayload...)
		mutated[i] ^= 0x01
		err := v.Verify(mutated, gjson.ParseBytes(mutated), headerWith(sig))
		require.ErrorIs(t, err, ErrSignatureRejected, "byte %d", i)
	}
}

func TestVerifier_RejectsSignatureMutation(t *testing.T) {
	v := noEnv(NewVerifier(testSecret, nil))
	sig := sign(testSecret, signedPayload)

	for i := range sig {
		mutated := []byte(sig)
		if mutated[i] == '0' {
			mutated[i] = '1'
		} else {
			mutated[i] = '0'
		}
		err := v.Verify(signedPayload, gjson.ParseBytes(signedPayload), headerWith("sha256="+string(mutated)))
		require.ErrorIs(t, err, ErrSignatureRejected, "char %d", i)
	}
}

func TestVerifier_Rejections(t *testing.T) {
	v := noEnv(NewVerifier(testSecret, nil))
	root := gjson.ParseBytes(signedPayload)

	t.Run("missing signature", func(t *testing.T) {
		err := v.Verify(signedPayload, root, nil)
		assert.ErrorIs(t, err, ErrSignatureRejected)
		assert.ErrorContains(t, err, "missing signature")
	})

	t.Run("wrong secret", func(t *testing.T) {
		err := v.Verify(signedPayload, root, headerWith("sha256="+sign("other", signedPayload)))
		assert.ErrorIs(t, err, ErrSignatureRejected)
	})

	t.Run("other algorithm", func(t *testing.T) {
		err := v.Verify(signedPayload, root, headerWith("sha1=abcdef"))
		assert.ErrorIs(t, err, ErrSignatureRejected)
		assert.ErrorContains(t, err, "unsupported algorithm")
	})
}

func TestVerifier_NoSecretAcceptsAnything(t *testing.T) {
	v := noEnv(NewVerifier("", nil))
	assert.False(t, v.Enabled())
	assert.NoError(t, v.Verify([]byte("not even json"), gjson.Result{}, nil))
	assert.NoError(t, v.Verify(signedPayload, gjson.ParseBytes(signedPayload), headerWith("sha256=bogus")))

	var nilVerifier *Verifier
	assert.NoError(t, nilVerifier.Verify(signedPayload, gjson.Result{}, nil))
}

func TestVerifier_LookupOrder(t *testing.T) {
	good := "sha256=" + sign(testSecret, signedPayload)
	bad := "sha256=" + sign("other", signedPayload)

	env := map[string]string{}
	v := NewVerifier(testSecret, []string{"MEMBANK_HOOK_SIGNATURE"})
	v.lookupEnv = func(k string) (string, bool) {
		val, ok := env[k]
		return val, ok
	}
	root := gjson.ParseBytes(signedPayload)

	// Header wins over the environment.
	env["MEMBANK_HOOK_SIGNATURE"] = bad
	assert.NoError(t, v.Verify(signedPayload, root, headerWith(good)))

	// Secondary header name.
	h := http.Header{}
	h.Set("X-Signature-256", good)
	assert.NoError(t, v.Verify(signedPayload, root, h))

	// Environment is used when no header is present.
	env["MEMBANK_HOOK_SIGNATURE"] = good
	assert.NoError(t, v.Verify(signedPayload, root, nil))

	// Environment wins over the payload field.
	env["MEMBANK_HOOK_SIGNATURE"] = bad
	withField := gjson.Parse(`{"signature":"` + good + `"}`)
	assert.ErrorIs(t, v.Verify(signedPayload, withField, nil), ErrSignatureRejected)

	// Payload field is the last resort.
	delete(env, "MEMBANK_HOOK_SIGNATURE")
	assert.NoError(t, v.Verify(signedPayload, withField, nil))
}

func TestVerifier_HTTPDeliveryIgnoresEnvironment(t *testing.T) {
	good := "sha256=" + sign(testSecret, signedPayload)
	v := NewVerifier(testSecret, []string{"MEMBANK_HOOK_SIGNATURE"})
	v.lookupEnv = func(k string) (string, bool) {
		if k == "MEMBANK_HOOK_SIGNATURE" {
			return good, true
		}
		return "", false
	}
	root := gjson.ParseBytes(signedPayload)

	err := v.Verify(signedPayload, root, http.Header{})
	assert.ErrorIs(t, err, ErrSignatureRejected)
	assert.ErrorContains(t, err, "missing signature")

	// The command-line path still reads it.
	assert.NoError(t, v.Verify(signedPayload, root, nil))
}
