package models

import "time"

// CookieRecord is a per-user encrypted credential bundle. The plaintext never
// leaves the vault; Ciphertext is nonce||box as produced by the vault.
type CookieRecord struct {
	OwnerID     string    `json:"owner_id"`
	Ciphertext  []byte    `json:"-"`
	SourceLabel string    `json:"source_label,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the record is semantically absent at now.
// The vault's lazy read and the periodic sweep both use this test.
func (r *CookieRecord) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}
