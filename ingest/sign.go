package ingest

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/NikitaSitlivy/fingercloak-api/errors"
)

// verifySignature checks the HMAC-SHA256 signature a trusted sensor
// attaches to its payload. The MAC covers the JSON encoding of the
// body with the "_signature" field removed and object keys sorted.
// An empty secret disables verification entirely.
func verifySignature(secret string, body []byte) error {
	if secret == "" {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return errors.WrapInvalid(err, "ingest", "verifySignature", "decode body")
	}

	sig, _ := m["_signature"].(string)
	if sig == "" {
		sig, _ = m["signature"].(string)
	}
	if sig == "" {
		return errors.WrapInvalid(errors.ErrBadSignature, "ingest", "verifySignature", "signature missing")
	}
	delete(m, "_signature")

	// json.Marshal writes map keys in sorted order and json.Number
	// values verbatim, so the signing base is reproducible.
	base, err := json.Marshal(m)
	if err != nil {
		return errors.WrapInvalid(err, "ingest", "verifySignature", "encode signing base")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(base)
	want := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(want), []byte(sig)) {
		return errors.WrapInvalid(errors.ErrBadSignature, "ingest", "verifySignature", "signature mismatch")
	}
	return nil
}
