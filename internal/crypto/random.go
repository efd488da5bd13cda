package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"io"
)

// Reader is the entropy source used for asset names and admin tokens.
var Reader io.Reader = rand.Reader

// RandomBytes returns n bytes read from Reader.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(Reader, b); err != nil {
		return nil, err
	}
	return b, nil
}

// RandomHex returns n random bytes encoded as 2n lowercase hex characters.
func RandomHex(n int) (string, error) {
	b, err := RandomBytes(n)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
