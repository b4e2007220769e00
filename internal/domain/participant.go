package domain

// ParticipantID is the external identity of a connected viewer, resolved
// from the auth token at bind time. The session layer never mints these.
type ParticipantID string
