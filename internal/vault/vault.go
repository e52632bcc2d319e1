// Package vault stores per-user authentication cookies encrypted at rest.
// Records expire after a TTL; the lazy read and the periodic sweep share one
// expiry predicate so no consumer ever sees a record as valid past its TTL.
package vault

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/nacl/secretbox"

	"tubegrab/internal/models"
	"tubegrab/internal/netscape"
	"tubegrab/internal/storage"
)

// ErrInvalidFormat rejects uploads that are not cookie-jar files carrying at
// least one entry for a recognized authentication domain.
var ErrInvalidFormat = errors.New("invalid cookie upload")

// authDomains is the recognized authentication domain set; an upload must
// contain at least one entry for one of these.
var authDomains = []string{
	".youtube.com",
	"youtube.com",
	".google.com",
	"google.com",
	"accounts.google.com",
}

const nonceSize = 24

// Vault encrypts, stores and expires per-user cookie blobs.
type Vault struct {
	cookies *storage.CookieRepository
	key     [32]byte
	ttl     time.Duration
	cache   *ttlcache.Cache[string, []byte]
	now     func() time.Time
}

// New creates a Vault. keyMaterial is either a base64-encoded 32-byte key or
// an arbitrary secret that is hashed into one. ttl bounds record lifetime.
func New(cookies *storage.CookieRepository, keyMaterial string, ttl time.Duration) (*Vault, error) {
	if keyMaterial == "" {
		return nil, errors.New("vault key must be configured")
	}

	var key [32]byte
	if raw, err := base64.StdEncoding.DecodeString(keyMaterial); err == nil && len(raw) == 32 {
		copy(key[:], raw)
	} else {
		key = sha256.Sum256([]byte(keyMaterial))
	}

	// Touch-on-hit would let repeated reads extend a cached blob past the
	// record's expires_at; the item TTL set on insert is the hard ceiling.
	cache := ttlcache.New[string, []byte](
		ttlcache.WithTTL[string, []byte](5*time.Minute),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go cache.Start()

	return &Vault{
		cookies: cookies,
		key:     key,
		ttl:     ttl,
		cache:   cache,
		now:     time.Now,
	}, nil
}

// Put validates, encrypts and stores a plaintext cookie blob for the owner,
// replacing any prior record. A rejected upload leaves the prior record
// untouched.
func (v *Vault) Put(ctx context.Context, ownerID string, plaintext []byte, sourceLabel string) (*models.CookieRecord, error) {
	entries, err := netscape.Parse(plaintext)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidFormat, err.Error())
	}
	if !netscape.MatchesDomain(entries, authDomains) {
		return nil, errors.Wrap(ErrInvalidFormat, "no entry for a recognized authentication domain")
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, errors.Wrap(err, "failed to generate nonce")
	}
	// secretbox.Seal appends to the first arg; pre-fill with the nonce so the
	// stored blob is nonce||ciphertext.
	ciphertext := secretbox.Seal(nonce[:], plaintext, &nonce, &v.key)

	now := v.now().UTC()
	rec := &models.CookieRecord{
		OwnerID:     ownerID,
		Ciphertext:  ciphertext,
		SourceLabel: sourceLabel,
		UploadedAt:  now,
		ExpiresAt:   now.Add(v.ttl),
	}
	if err := v.cookies.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	v.cache.Delete(ownerID)
	return rec, nil
}

// Get returns the owner's decrypted cookie blob, or (nil, nil) when the owner
// has no record or the record has expired. Expiry is applied before
// decryption, so a stale row is indistinguishable from an absent one.
func (v *Vault) Get(ctx context.Context, ownerID string) ([]byte, error) {
	if item := v.cache.Get(ownerID); item != nil {
		return item.Value(), nil
	}

	rec, err := v.cookies.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	now := v.now()
	if rec == nil || rec.Expired(now) {
		return nil, nil
	}

	plaintext, err := v.decrypt(rec.Ciphertext)
	if err != nil {
		return nil, err
	}

	cacheTTL := rec.ExpiresAt.Sub(now)
	if cacheTTL > 5*time.Minute {
		cacheTTL = 5 * time.Minute
	}
	v.cache.Set(ownerID, plaintext, cacheTTL)
	return plaintext, nil
}

// Metadata returns the owner's record without the blob, applying the same
// expiry test as Get. (nil, nil) when absent or expired.
func (v *Vault) Metadata(ctx context.Context, ownerID string) (*models.CookieRecord, error) {
	rec, err := v.cookies.Get(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Expired(v.now()) {
		return nil, nil
	}
	rec.Ciphertext = nil
	return rec, nil
}

// Delete removes the owner's record.
func (v *Vault) Delete(ctx context.Context, ownerID string) error {
	v.cache.Delete(ownerID)
	return v.cookies.Delete(ctx, ownerID)
}

// Sweep physically deletes expired records. Uses the same expires_at <= now
// test the lazy read applies through models.CookieRecord.Expired.
func (v *Vault) Sweep(ctx context.Context) (int64, error) {
	return v.cookies.DeleteExpired(ctx, v.now())
}

// SweepLoop runs Sweep on the given cadence until ctx is cancelled.
func (v *Vault) SweepLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			swept, err := v.Sweep(ctx)
			if err != nil {
				log.WithError(err).Error("Cookie sweep failed")
				continue
			}
			if swept > 0 {
				log.WithField("records", swept).Info("Swept expired cookie records")
			}
		}
	}
}

// Stop releases the vault's cache resources.
func (v *Vault) Stop() {
	v.cache.Stop()
}

func (v *Vault) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < nonceSize {
		return nil, errors.New("cookie record ciphertext is truncated")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[:nonceSize])
	plaintext, ok := secretbox.Open(nil, ciphertext[nonceSize:], &nonce, &v.key)
	if !ok {
		return nil, errors.New("cookie record failed to decrypt; was the vault key rotated?")
	}
	return plaintext, nil
}
