package claim

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// PasswordLength is the length of a generated cloud-account secret.
const PasswordLength = 12

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GeneratePassword returns n random ASCII letters.
func GeneratePassword(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("invalid password length %d", n)
	}
	max := big.NewInt(int64(len(letters)))
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		buf[i] = letters[idx.Int64()]
	}
	return string(buf), nil
}
