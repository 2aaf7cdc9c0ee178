package app

import "github.com/google/uuid"

const (
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// TokenLength is the number of characters in a room token.
	TokenLength = 6

	// largest multiple of the alphabet size that fits in a byte
	tokenByteLimit = 256 - 256%len(tokenAlphabet)
)

type uuidTokens struct{}

// NewTokenGenerator returns a generator of short upper-case alphanumeric tokens.
func NewTokenGenerator() TokenGenerator { return uuidTokens{} }

func (uuidTokens) Generate() string {
	token := make([]byte, 0, TokenLength)
	for len(token) < TokenLength {
		id := uuid.New()
		// bytes 6 and 8 carry the version and variant bits
		random := append(append(id[:6:6], id[7]), id[9:]...)
		token, _ = tokenFromBytes(token, random)
	}
	return string(token)
}

// tokenFromBytes appends symbols to token until it is full, rejecting bytes that
// would make the mapping uneven. It returns the token and how many bytes it consumed.
func tokenFromBytes(token, src []byte) ([]byte, int) {
	n := 0
	for _, b := range src {
		if len(token) == TokenLength {
			break
		}
		n++
		if int(b) >= tokenByteLimit {
			continue
		}
		token = append(token, tokenAlphabet[int(b)%len(tokenAlphabet)])
	}
	return token, n
}
