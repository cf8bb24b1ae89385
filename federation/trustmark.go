package federation

import (
	"github.com/dagregi/oidf-federation/errors"
)

// TrustMarkIssuer issues, revokes, and records Trust Marks on behalf of an EntityContext.
type TrustMarkIssuer struct {
	ctx    *EntityContext
	signer *Signer
}

// NewTrustMarkIssuer builds a TrustMarkIssuer bound to ctx, signing with signer.
func NewTrustMarkIssuer(ctx *EntityContext, signer *Signer) *TrustMarkIssuer {
	return &TrustMarkIssuer{ctx: ctx, signer: signer}
}

// Issue mints and signs a Trust Mark asserting trustMarkID about subject, optionally expiring
// after expiresInSeconds, and records it among this entity's issued Trust Marks.
func (i *TrustMarkIssuer) Issue(trustMarkID, subject Identifier, expiresInSeconds *int64) (string, error) {
	now := i.ctx.Clock().Now()
	claims := map[string]interface{}{
		"iss": i.ctx.EntityID().String(),
		"sub": subject.String(),
		"id":  trustMarkID.String(),
		"iat": now,
	}

	var expiresAt *int64
	if expiresInSeconds != nil {
		exp := now + *expiresInSeconds
		claims["exp"] = exp
		expiresAt = &exp
	}

	jwt, err := i.signer.SignStatement(claims)
	if err != nil {
		return "", errors.Kindf(errors.SignFailure, "failed to sign trust mark: %w", err)
	}

	i.ctx.AddIssuedTrustMark(TrustMarkRecord{
		ID:        trustMarkID,
		Issuer:    i.ctx.EntityID(),
		Subject:   subject,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
		SignedJWT: jwt,
	})

	return jwt, nil
}

// Revoke removes the issued Trust Mark record with the given ID. Revocation is purely local; no
// external notification is sent.
func (i *TrustMarkIssuer) Revoke(trustMarkID Identifier) bool {
	return i.ctx.RemoveIssuedTrustMark(trustMarkID)
}

// AddReceived parses signedJWT without verifying its signature (signature verification is
// deferred to resolution time) and records it among this entity's received Trust Marks. Fails
// with SubjectMismatch if the mark's sub does not name this entity.
func (i *TrustMarkIssuer) AddReceived(signedJWT string) error {
	claims, err := ParseClaimsUnverified(signedJWT)
	if err != nil {
		return errors.Kindf(errors.BadRequest, "malformed trust mark: %w", err)
	}

	sub, _ := claims["sub"].(string)
	if sub != i.ctx.EntityID().String() {
		return errors.Kindf(errors.SubjectMismatch, "trust mark subject %q does not match this entity", sub)
	}

	issuerStr, _ := claims["iss"].(string)
	issuer, err := NewIdentifier(issuerStr)
	if err != nil {
		return errors.Kindf(errors.BadRequest, "trust mark has invalid iss: %w", err)
	}

	idStr, _ := claims["id"].(string)
	id, err := NewIdentifier(idStr)
	if err != nil {
		return errors.Kindf(errors.BadRequest, "trust mark has invalid id: %w", err)
	}

	subject, err := NewIdentifier(sub)
	if err != nil {
		return errors.Kindf(errors.BadRequest, "trust mark has invalid sub: %w", err)
	}

	var expiresAt *int64
	if raw, ok := claims["exp"]; ok {
		exp := ClaimInt64(raw)
		expiresAt = &exp
	}

	i.ctx.AddReceivedTrustMark(TrustMarkRecord{
		ID:        id,
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  ClaimInt64(claims["iat"]),
		ExpiresAt: expiresAt,
		SignedJWT: signedJWT,
	})

	return nil
}
