package federation

import (
	"github.com/google/uuid"

	"github.com/dagregi/oidf-federation/errors"
)

// entityConfigurationLifetime is the one-year validity window for a self-signed Entity
// Configuration.
const entityConfigurationLifetime = 31_536_000

// BuildEntityConfiguration assembles the claim map for this entity's self-signed Entity
// Configuration. fetchEndpoint and listEndpoint are used only as the default metadata's
// federation_fetch_endpoint/federation_list_endpoint when the entity has declared no metadata of
// its own.
func BuildEntityConfiguration(ctx *EntityContext, fetchEndpoint, listEndpoint string) (map[string]interface{}, error) {
	publicJWK, err := ctx.KeyManager().PublicJWK()
	if err != nil {
		return nil, err
	}

	now := ctx.Clock().Now()
	claims := map[string]interface{}{
		"iss":  ctx.EntityID().String(),
		"sub":  ctx.EntityID().String(),
		"iat":  now,
		"exp":  now + entityConfigurationLifetime,
		"jti":  uuid.New().String(),
		"jwks": map[string]interface{}{"keys": []interface{}{publicJWK}},
	}

	metadata := ctx.Metadata()
	if len(metadata) == 0 {
		metadata = map[string]interface{}{
			"federation_entity": map[string]interface{}{
				"federation_fetch_endpoint": fetchEndpoint,
				"federation_list_endpoint":  listEndpoint,
			},
		}
	}
	claims["metadata"] = metadata

	hints := ctx.AuthorityHints()
	if len(hints) > 0 {
		hintStrings := make([]string, len(hints))
		for i, hint := range hints {
			hintStrings[i] = hint.String()
		}
		claims["authority_hints"] = hintStrings
	}

	var trustMarks []string
	for _, received := range ctx.ReceivedTrustMarks() {
		if received.Subject.Equals(ctx.EntityID()) {
			trustMarks = append(trustMarks, received.SignedJWT)
		}
	}
	if len(trustMarks) > 0 {
		claims["trust_marks"] = trustMarks
	}

	return claims, nil
}

// SignEntityConfiguration builds and signs this entity's Entity Configuration JWT.
func SignEntityConfiguration(ctx *EntityContext, signer *Signer, fetchEndpoint, listEndpoint string) (string, error) {
	claims, err := BuildEntityConfiguration(ctx, fetchEndpoint, listEndpoint)
	if err != nil {
		return "", err
	}
	jwt, err := signer.SignStatement(claims)
	if err != nil {
		return "", errors.Kindf(errors.SignFailure, "failed to sign entity configuration: %w", err)
	}
	return jwt, nil
}
