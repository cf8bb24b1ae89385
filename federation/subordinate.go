package federation

import (
	"net/url"

	"github.com/google/uuid"

	"github.com/dagregi/oidf-federation/errors"
)

// subordinateStatementLifetime mirrors the one-year Entity Configuration lifetime; there is no
// distinction between the two lifetimes.
const subordinateStatementLifetime = entityConfigurationLifetime

// BuildSubordinateStatement assembles the claim map for a Subordinate Statement this entity
// issues about subordinateID. ownFetchEndpoint is used to build source_endpoint.
func BuildSubordinateStatement(ctx *EntityContext, subordinateID Identifier, ownFetchEndpoint string) (map[string]interface{}, error) {
	record, ok := ctx.GetSubordinate(subordinateID)
	if !ok {
		return nil, errors.Kindf(errors.NotFound, "unknown subordinate %q", subordinateID.String())
	}

	now := ctx.Clock().Now()
	claims := map[string]interface{}{
		"iss":  ctx.EntityID().String(),
		"sub":  record.EntityID.String(),
		"aud":  record.EntityID.String(),
		"iat":  now,
		"exp":  now + subordinateStatementLifetime,
		"jti":  uuid.New().String(),
		"jwks": record.JWKS,
	}
	if len(record.Metadata) > 0 {
		claims["metadata"] = record.Metadata
	}
	claims["source_endpoint"] = ownFetchEndpoint + "?sub=" + url.QueryEscape(record.EntityID.String())

	return claims, nil
}

// SignSubordinateStatement builds and signs a Subordinate Statement about subordinateID.
func SignSubordinateStatement(ctx *EntityContext, signer *Signer, subordinateID Identifier, ownFetchEndpoint string) (string, error) {
	claims, err := BuildSubordinateStatement(ctx, subordinateID, ownFetchEndpoint)
	if err != nil {
		return "", err
	}
	jwt, err := signer.SignStatement(claims)
	if err != nil {
		return "", errors.Kindf(errors.SignFailure, "failed to sign subordinate statement: %w", err)
	}
	return jwt, nil
}
