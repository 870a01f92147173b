package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"hash"
	"strings"
)

const otpSecretBytes = 20

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateOTPSecret returns a fresh random secret in base32 form.
func GenerateOTPSecret() (string, error) {
	raw := make([]byte, otpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return b32.EncodeToString(raw), nil
}

// OTPCode derives the one-time code for a secret at a given time-step
// counter. The HMAC output is dynamically truncated to a 31-bit integer
// and re-encoded over the configured character set, so alphabets other
// than digits work too.
func OTPCode(secretB32 string, counter int64, digits int, charset, algorithm string) (string, error) {
	if digits <= 0 {
		return "", errors.New("otp digits must be positive")
	}
	if len(charset) < 2 {
		return "", errors.New("otp charset must have at least two characters")
	}

	secret, err := b32.DecodeString(strings.ToUpper(secretB32))
	if err != nil {
		return "", errors.New("malformed otp secret")
	}
	if len(secret) == 0 {
		return "", errors.New("empty otp secret")
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	out := make([]byte, digits)
	for i := digits - 1; i >= 0; i-- {
		out[i] = charset[bin%len(charset)]
		bin /= len(charset)
	}

	return string(out), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, errors.New("unsupported otp algorithm")
	}
}
