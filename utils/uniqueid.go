// utils/uniqueid.go
package utils

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"math/big"
	"strings"
)

// GenerateUniqueID generates the shareable 8-digit account identifier users
// hand out as their transfer address. Uniqueness is enforced by the index
// on users.uniqueId; callers retry on a duplicate-key error.
func GenerateUniqueID() (string, error) {
	max := big.NewInt(100000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%08d", n.Int64()), nil
}

// GenerateAgencyCode generates an agency join code.
// Format: AG-{RANDOM} where RANDOM is 6 alphanumeric characters.
func GenerateAgencyCode() (string, error) {
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}

	randomStr := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes)
	randomStr = strings.ToUpper(randomStr)
	if len(randomStr) > 6 {
		randomStr = randomStr[:6]
	}

	return "AG-" + randomStr, nil
}

// GenerateUsername derives a login-friendly username from a display name.
func GenerateUsername(name string) (string, error) {
	base := strings.ToLower(strings.Join(strings.Fields(name), ""))
	if base == "" {
		base = "user"
	}

	n, err := rand.Int(rand.Reader, big.NewInt(1000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%d", base, n.Int64()), nil
}
