// Package otp manages one-time passcode challenges keyed by phone number.
package otp

import (
	"crypto/rand"
	"io"
)

// CodeDigits is the length of a generated code.
const CodeDigits = 6

// maxUnbiased is the largest multiple of 10 that fits in a byte; bytes at or above it are rejected.
const maxUnbiased = 250

// GenerateOTP returns a 6-digit numeric OTP string (e.g. "042917") from crypto/rand.
func GenerateOTP() (string, error) {
	return generateDigits(rand.Reader, CodeDigits)
}

// generateDigits draws n uniform decimal digits from r by rejection sampling.
func generateDigits(r io.Reader, n int) (string, error) {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= maxUnbiased {
				continue
			}
			out = append(out, '0'+b%10)
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
