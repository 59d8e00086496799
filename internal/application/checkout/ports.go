package checkout

// IDGenerator issues order ids and payment session tokens. Tokens must be
// unguessable; the uuid-backed implementation satisfies both uses.
type IDGenerator interface {
	NewID() string
}
