// Package mixnet implements the trustee side of a re-encryption mixnet
// for elections. Trustees coordinate exclusively through a shared bulletin
// board: each one observes the set of published artifacts, derives the next
// protocol step from a rule table, performs its cryptographic work and
// publishes the result under a signed statement. There is no direct
// trustee-to-trustee channel and no local protocol state, so any trustee
// can crash and resume from the board alone.
//
// The packages divide along those lines: names defines the board's key
// grammar, condition the rule algebra, artifact the records and their
// signed statements, envelope the RSA/AES/SHA-512 primitives, mixlib the
// group arithmetic, shuffles and proofs, board the shared append-only
// store, and protocol the rule table, the actions and the driver loop.
// The trustee-loop and trustee-admin commands wrap it all for operation.
package mixnet
