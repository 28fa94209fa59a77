package verification

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

const (
	codeMin  = 100000
	codeSpan = 900000 // [100000, 999999]
)

// Generator produces a fresh verification code.
type Generator func() (string, error)

// RandomCode draws a 6-digit code uniformly from [100000, 999999] using crypto/rand.
func RandomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpan))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return strconv.FormatInt(n.Int64()+codeMin, 10), nil
}

// NormalizeIdentity canonicalises an email identity so lookups are case-insensitive.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
