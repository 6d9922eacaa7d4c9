package protocol

// The mix order rotates with the item so that the expensive first mix
// (no upstream proof to wait for) lands on a different trustee per item.
// All indices are 1-based.

// MixPosition is the position at which trustee t mixes item p among n
// trustees.
func MixPosition(t, p, n int) int {
	return ((t - 1) + (p - 1)) % n + 1
}

// TrusteeAtPosition is the trustee mixing item p at position k, the
// inverse of MixPosition for fixed (p, n).
func TrusteeAtPosition(k, p, n int) int {
	return (((k-1)-(p-1))%n+n)%n + 1
}

// DecryptorForItem is the trustee that publishes the plaintexts of item p.
func DecryptorForItem(p, n int) int {
	return (p-1)%n + 1
}
