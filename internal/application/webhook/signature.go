package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries "t=<unix>,v1=<hex hmac>" where the MAC covers "<t>.<body>".
const SignatureHeader = "Payment-Signature"

// DefaultTolerance bounds how far the signed timestamp may drift from now.
const DefaultTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("webhook: missing signature")
	ErrMalformedHeader  = errors.New("webhook: malformed signature header")
	ErrStaleTimestamp   = errors.New("webhook: timestamp outside tolerance")
	ErrSignatureInvalid = errors.New("webhook: signature mismatch")
	ErrNoSecret         = errors.New("webhook: signing secret not configured")
)

// Sign produces a header value for payload signed at ts.
func Sign(payload []byte, secret string, ts time.Time) string {
	t := strconv.FormatInt(ts.Unix(), 10)
	return "t=" + t + ",v1=" + computeMAC(payload, secret, t)
}

// VerifySignature checks header against payload. Any v1 entry may match.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	if secret == "" {
		return ErrNoSecret
	}
	if header == "" {
		return ErrMissingSignature
	}

	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return ErrMalformedHeader
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: timestamp %q", ErrMalformedHeader, ts)
	}
	if tolerance > 0 {
		drift := now.Sub(time.Unix(unix, 0))
		if drift < 0 {
			drift = -drift
		}
		if drift > tolerance {
			return ErrStaleTimestamp
		}
	}

	want, _ := hex.DecodeString(computeMAC(payload, secret, ts))
	for _, s := range sigs {
		got, err := hex.DecodeString(s)
		if err != nil {
			continue
		}
		if hmac.Equal(got, want) {
			return nil
		}
	}
	return ErrSignatureInvalid
}

func computeMAC(payload []byte, secret, ts string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
