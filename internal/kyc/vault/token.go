package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

// TokenSource mints, caches and refreshes vault access grants. The vendor
// grant is wrapped in a locally signed JWT carrying the expiry, so validity
// checks never call the vendor.
type TokenSource struct {
	gateway    Gateway
	cache      Cache
	signingKey []byte
	logger     *slog.Logger
}

func NewTokenSource(gw Gateway, cache Cache, signingKey []byte, logger *slog.Logger) *TokenSource {
	return &TokenSource{gateway: gw, cache: cache, signingKey: signingKey, logger: logger}
}

// Grant returns a valid access grant for the tax identifier: the cached one
// while its signature is still valid, a transparently refreshed one once
// expired, or a freshly created one when none exists. The source label
// reports which path was taken (cached, refreshed, minted).
func (s *TokenSource) Grant(ctx context.Context, customerName string, taxID id.TaxID) (CachedGrant, string, error) {
	key := taxID.Hash()
	now := requestcontext.Now(ctx)

	cached, err := s.cache.Get(ctx, key)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return CachedGrant{}, "", dErrors.Wrap(dErrors.CodeInternal, "read vault grant cache", err)
	}
	if cached != nil {
		if s.verify(cached.Signed, now) == nil {
			return *cached, "cached", nil
		}
		// Expired: refresh the vendor grant for the same doc id.
		token, validTill, err := s.gateway.RefreshAccessRequest(ctx, cached.DocID)
		if err != nil {
			return CachedGrant{}, "", dErrors.Wrap(dErrors.CodeGateway, "vault: refresh access request", err)
		}
		grant, err := s.seal(ctx, key, cached.DocID, token, validTill, now)
		if err != nil {
			return CachedGrant{}, "", err
		}
		return grant, "refreshed", nil
	}

	created, err := s.gateway.CreateAccessRequest(ctx, customerName, taxID.String())
	if err != nil {
		return CachedGrant{}, "", dErrors.Wrap(dErrors.CodeGateway, "vault: create access request", err)
	}
	grant, err := s.seal(ctx, key, created.DocID, created.Token, created.ValidTill, now)
	if err != nil {
		return CachedGrant{}, "", err
	}
	return grant, "minted", nil
}

// seal signs the grant and writes it through the cache. A grant whose
// validity window has already closed is rejected rather than cached with a
// non-positive ttl.
func (s *TokenSource) seal(ctx context.Context, key, docID, vendorToken string, validTill, now time.Time) (CachedGrant, error) {
	if !validTill.After(now) {
		return CachedGrant{}, dErrors.Newf(dErrors.CodeGateway, "vault: grant for doc %s already expired", docID)
	}
	claims := jwt.RegisteredClaims{
		Subject:   docID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(validTill),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return CachedGrant{}, dErrors.Wrap(dErrors.CodeInternal, "sign vault grant", err)
	}

	grant := CachedGrant{
		DocID:       docID,
		VendorToken: vendorToken,
		ValidTill:   validTill,
		Signed:      signed,
	}
	ttl := validTill.Sub(now)
	if err := s.cache.Set(ctx, key, &grant, ttl); err != nil {
		return CachedGrant{}, dErrors.Wrap(dErrors.CodeInternal, "cache vault grant", err)
	}
	return grant, nil
}

func (s *TokenSource) verify(signed string, now time.Time) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	_, err := parser.Parse(signed, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	})
	if err != nil {
		return fmt.Errorf("verify vault grant: %w", err)
	}
	return nil
}
