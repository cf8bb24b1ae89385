package federation

import (
	"crypto/rsa"
	"encoding/json"

	"github.com/go-jose/go-jose/v4"

	"github.com/dagregi/oidf-federation/errors"
)

// signatureAlgorithms is the sole set of algorithms this module ever signs or verifies with.
// Negotiation or discovery of algorithms beyond RS256 is out of scope.
var signatureAlgorithms = []jose.SignatureAlgorithm{jose.RS256}

// Signer mints compact-serialized RS256 JWTs from claim maps, using a KeyManager's key.
type Signer struct {
	keys *KeyManager
}

// NewSigner builds a Signer bound to the given KeyManager.
func NewSigner(keys *KeyManager) *Signer {
	return &Signer{keys: keys}
}

// SignStatement serializes claims to JSON and signs them with header {alg:"RS256", kid, typ:"JWT"}.
func (s *Signer) SignStatement(claims map[string]interface{}) (string, error) {
	privateKey, kid, err := s.keys.signingKey()
	if err != nil {
		return "", err
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.RS256, Key: privateKey},
		&jose.SignerOptions{
			ExtraHeaders: map[jose.HeaderKey]interface{}{
				jose.HeaderType: "JWT",
				"kid":           kid,
			},
		},
	)
	if err != nil {
		return "", errors.Kindf(errors.SignFailure, "failed to construct signer: %w", err)
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", errors.Kindf(errors.SignFailure, "failed to marshal claims: %w", err)
	}

	jws, err := signer.Sign(payload)
	if err != nil {
		return "", errors.Kindf(errors.SignFailure, "failed to sign statement: %w", err)
	}

	compact, err := jws.CompactSerialize()
	if err != nil {
		return "", errors.Kindf(errors.SignFailure, "failed to serialize statement: %w", err)
	}
	return compact, nil
}

// VerifyStatement verifies a compact RS256 JWT against jwks and returns its claim map.
//
// Verification does not enforce exp or iat; policy checks over those claims are the caller's
// responsibility.
func VerifyStatement(compact string, jwks jose.JSONWebKeySet) (map[string]interface{}, error) {
	jws, err := jose.ParseSigned(compact, signatureAlgorithms)
	if err != nil {
		return nil, errors.Kindf(errors.VerificationFailure, "failed to parse JWT: %w", err)
	}
	if len(jws.Signatures) != 1 {
		return nil, errors.Kindf(errors.VerificationFailure, "JWT must have exactly one signature")
	}

	kid := jws.Signatures[0].Header.KeyID
	if kid == "" {
		return nil, errors.Kindf(errors.VerificationFailure, "JWT header is missing kid")
	}

	key := jwks.Key(kid)
	if len(key) == 0 {
		return nil, errors.Kindf(errors.VerificationFailure, "kid %q not found in jwks", kid)
	}

	if _, ok := key[0].Key.(*rsa.PublicKey); !ok {
		return nil, errors.Kindf(errors.VerificationFailure, "key %q is not RSA", kid)
	}

	payload, err := jws.Verify(key[0])
	if err != nil {
		return nil, errors.Kindf(errors.VerificationFailure, "signature verification failed: %w", err)
	}

	var claims map[string]interface{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, errors.Kindf(errors.VerificationFailure, "failed to unmarshal claims: %w", err)
	}
	return claims, nil
}

// ParseClaimsUnverified extracts the claim map of a compact JWT without checking its signature.
// Used where a JWT's own claims must be read before the key set needed to verify it is known —
// self-signed Entity Configurations, and inbound Trust Marks prior to resolution.
func ParseClaimsUnverified(compact string) (map[string]interface{}, error) {
	jws, err := jose.ParseSigned(compact, signatureAlgorithms)
	if err != nil {
		return nil, errors.Kindf(errors.VerificationFailure, "failed to parse JWT: %w", err)
	}

	payload := jws.UnsafePayloadWithoutVerification()
	var claims map[string]interface{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, errors.Kindf(errors.VerificationFailure, "failed to unmarshal claims: %w", err)
	}
	return claims, nil
}

// VerifySelfSigned verifies an Entity Configuration: a JWT verified against the JWKS extracted
// from its own, as yet unverified, claims. This is deliberately distinct from verifying against a
// trusted key set — the embedded JWKS is trusted only because iss == sub asserts self-custody.
func VerifySelfSigned(compact string) (map[string]interface{}, error) {
	unverified, err := ParseClaimsUnverified(compact)
	if err != nil {
		return nil, err
	}

	iss, _ := unverified["iss"].(string)
	sub, _ := unverified["sub"].(string)
	if iss == "" || iss != sub {
		return nil, errors.Kindf(errors.VerificationFailure, "not an entity configuration: iss %q != sub %q", iss, sub)
	}

	jwks, err := JWKSFromClaims(unverified)
	if err != nil {
		return nil, err
	}

	return VerifyStatement(compact, jwks)
}

// JWKSFromClaims extracts and decodes the jwks claim of a claim map into a JSONWebKeySet.
func JWKSFromClaims(claims map[string]interface{}) (jose.JSONWebKeySet, error) {
	raw, ok := claims["jwks"]
	if !ok {
		return jose.JSONWebKeySet{}, errors.Kindf(errors.VerificationFailure, "claims have no jwks")
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return jose.JSONWebKeySet{}, errors.Kindf(errors.VerificationFailure, "failed to re-encode jwks claim: %w", err)
	}

	var jwks jose.JSONWebKeySet
	if err := json.Unmarshal(encoded, &jwks); err != nil {
		return jose.JSONWebKeySet{}, errors.Kindf(errors.VerificationFailure, "failed to decode jwks claim: %w", err)
	}
	return jwks, nil
}

// ClaimInt64 coerces a decoded JSON claim value (a float64, per encoding/json's default number
// type) to an int64. Missing or non-numeric claims yield 0.
func ClaimInt64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}

// ClaimStringSlice coerces a decoded JSON claim value to a []string. Missing or malformed claims
// yield nil.
func ClaimStringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}
