package utils

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const credentialAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewToken returns a URL-safe random token of n characters.
func NewToken(n int) (string, error) {
	return gonanoid.New(n)
}

// NewCredential returns a random password of n characters without look-alike glyphs.
func NewCredential(n int) (string, error) {
	return gonanoid.Generate(credentialAlphabet, n)
}
