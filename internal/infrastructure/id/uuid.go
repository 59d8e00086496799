package id

import "github.com/google/uuid"

// UUIDGenerator issues random UUIDv4 identifiers for orders and payment
// session tokens. Tokens being unguessable is what makes sessions opaque.
type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator { return UUIDGenerator{} }

func (UUIDGenerator) NewID() string { return uuid.NewString() }
