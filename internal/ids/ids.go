package ids

import (
	"crypto/rand"
	"errors"
	"math/big"
	"regexp"

	"github.com/segmentio/ksuid"
)

const (
	shortIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	ShortIDLength   = 8
)

var (
	shortIDPattern = regexp.MustCompile(`^[a-z0-9]{8}$`)

	ErrShortIDExhausted = errors.New("failed to generate unique short_id")
)

// New returns a fresh, time-sortable image identifier.
func New() string {
	return ksuid.New().String()
}

// NewShortID draws ShortIDLength characters uniformly from [a-z0-9].
func NewShortID() (string, error) {
	max := big.NewInt(int64(len(shortIDAlphabet)))
	buf := make([]byte, ShortIDLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = shortIDAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func IsShortID(s string) bool {
	return shortIDPattern.MatchString(s)
}
