package id

import "github.com/google/uuid"

// UUIDGenerator hands out random (v4) identifiers so ids exist before anything
// is written.
type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator { return UUIDGenerator{} }

func (UUIDGenerator) NewID() string { return uuid.NewString() }
