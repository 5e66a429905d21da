package util

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const idCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewID returns a random alphanumeric identifier of length n
func NewID(n int) (string, error) {
	return gonanoid.Generate(idCharset, n)
}

// MustID is NewID for callers that can't do anything useful with the error,
// like the request ID middleware
func MustID(n int) string {
	return gonanoid.MustGenerate(idCharset, n)
}
