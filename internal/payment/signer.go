package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// ChecksumField carries the gateway signature in callback parameters.
const ChecksumField = "CHECKSUMHASH"

// Signer signs gateway requests and checks callback checksums with the merchant key.
type Signer struct {
	key []byte
}

// NewSigner creates a signer for a merchant key.
func NewSigner(merchantKey string) *Signer {
	return &Signer{key: []byte(merchantKey)}
}

// Sign returns the hex HMAC-SHA256 of body.
func (s *Signer) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}

// SignParams signs callback parameters in canonical form: values ordered by key and
// joined with "|". The checksum field itself is never signed.
func (s *Signer) SignParams(params map[string]string) string {
	return s.Sign([]byte(canonicalParams(params)))
}

// VerifyParams reports whether signature matches params.
func (s *Signer) VerifyParams(params map[string]string, signature string) bool {
	expected, err := hex.DecodeString(s.SignParams(params))
	if err != nil {
		return false
	}

	actual, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	return hmac.Equal(expected, actual)
}

func canonicalParams(params map[string]string) string {
	keys := make([]string, 0, len(params))

	for key := range params {
		if key != ChecksumField {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	values := make([]string, 0, len(keys))
	for _, key := range keys {
		values = append(values, params[key])
	}

	return strings.Join(values, "|")
}
