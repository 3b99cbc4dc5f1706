package utils

import "github.com/google/uuid"

// IDGenerator issues unique identifiers.
type IDGenerator interface {
	Generate() string
}

// UUIDGenerator issues time-ordered UUIDv7 strings, falling back to a random
// v4 if the clock source fails.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) Generate() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return v7.String()
}

// GeneratorFunc adapts a plain function to [IDGenerator]. Tests use it for
// predictable ids.
type GeneratorFunc func() string

func (f GeneratorFunc) Generate() string {
	return f()
}
