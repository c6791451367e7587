package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Webhook deliveries carry a signature header of the form
//
//	t=<unix seconds>,v1=<hex hmac-sha256(secret, "<t>.<raw body>")>
//
// Signing the timestamp together with the body stops replay of a captured
// delivery outside the tolerance window.

const signatureTolerance = 5 * time.Minute

// VerifySignature checks header against the raw request body. It returns
// an error on any malformed, mismatched or stale signature; callers must
// not touch the payload before this passes.
func VerifySignature(body []byte, header, secret string, now time.Time) error {
	if strings.TrimSpace(header) == "" {
		return errors.New("signature header missing")
	}
	var ts int64
	var sig []byte
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return errors.Wrap(err, "invalid signature timestamp")
			}
			ts = n
		case "v1":
			b, err := hex.DecodeString(v)
			if err != nil {
				return errors.Wrap(err, "invalid signature encoding")
			}
			sig = b
		}
	}
	if ts == 0 || len(sig) == 0 {
		return errors.New("signature header incomplete")
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return errors.New("signature timestamp outside tolerance")
	}
	expected := computeSignature(body, ts, secret)
	if !hmac.Equal(sig, expected) {
		return errors.New("signature mismatch")
	}
	return nil
}

// SignPayload produces a header that VerifySignature accepts. Used when
// acting as the provider side in tests and local tooling.
func SignPayload(body []byte, secret string, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(computeSignature(body, ts, secret)))
}

func computeSignature(body []byte, ts int64, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	return mac.Sum(nil)
}
