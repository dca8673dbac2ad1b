package util

import (
	"crypto/rand"
	"math/big"
	"regexp"

	"github.com/pkg/errors"
)

// IDAlphabet omits 0, O, 1, l and I.
const IDAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

const DefaultIDLength = 7

var idPattern = regexp.MustCompile(`^[0-9A-Za-z_-]{5,16}$`)

var alphabetSize = big.NewInt(int64(len(IDAlphabet)))

// NewID draws n characters independently and uniformly from IDAlphabet using crypto/rand.
// Ids double as access tokens for pastes without a PIN, so a weaker source is not acceptable.
func NewID(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("id length must be positive")
	}
	buf := make([]byte, n)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", errors.Wrap(err, "rand fail")
		}
		buf[i] = IDAlphabet[idx.Int64()]
	}
	return string(buf), nil
}

// ValidID reports whether id is acceptable on the fetch path. The pattern is wider than
// the generator's alphabet so ids minted under older alphabets stay reachable.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}
