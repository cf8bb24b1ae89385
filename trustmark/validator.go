// Package trustmark implements the Trust Mark Validator: it checks that a Trust Mark on an
// entity's configuration was issued by an entity reachable through a resolved trust chain.
package trustmark

import (
	"github.com/dagregi/oidf-federation/federation"
)

// Validation is the outcome of validating a single Trust Mark.
type Validation struct {
	Valid   bool
	ID      string
	Issuer  string
	Subject string
	Error   string
}

// Validate checks every Trust Mark on entityConfig's trust_marks claim against chainStatements,
// requiring each to name expectedSubject and to be signed by an issuer whose configuration appears
// somewhere in the chain. clock supplies the current time for expiry checks.
func Validate(
	entityConfig map[string]interface{},
	expectedSubject string,
	chainStatements []map[string]interface{},
	clock federation.Clock,
) []Validation {
	var raw []interface{}
	switch marks := entityConfig["trust_marks"].(type) {
	case []interface{}:
		raw = marks
	case []string:
		for _, mark := range marks {
			raw = append(raw, mark)
		}
	}
	results := make([]Validation, 0, len(raw))
	for _, item := range raw {
		jwt, ok := item.(string)
		if !ok {
			results = append(results, Validation{Error: "trust mark is not a string"})
			continue
		}
		results = append(results, validateOne(jwt, expectedSubject, chainStatements, clock))
	}
	return results
}

func validateOne(
	jwt, expectedSubject string,
	chainStatements []map[string]interface{},
	clock federation.Clock,
) Validation {
	claims, err := federation.ParseClaimsUnverified(jwt)
	if err != nil {
		return Validation{Error: "malformed trust mark"}
	}

	iss, _ := claims["iss"].(string)
	sub, _ := claims["sub"].(string)
	id, _ := claims["id"].(string)
	v := Validation{ID: id, Issuer: iss, Subject: sub}

	if sub != expectedSubject {
		v.Error = "subject mismatch"
		return v
	}

	if expRaw, ok := claims["exp"]; ok {
		if federation.ClaimInt64(expRaw) < clock.Now() {
			v.Error = "expired"
			return v
		}
	}

	var issuerStatement map[string]interface{}
	for _, statement := range chainStatements {
		if stmtIss, _ := statement["iss"].(string); stmtIss == iss {
			issuerStatement = statement
			break
		}
	}
	if issuerStatement == nil {
		v.Error = "issuer not in chain"
		return v
	}

	jwks, err := federation.JWKSFromClaims(issuerStatement)
	if err != nil {
		v.Error = "issuer statement has no jwks"
		return v
	}

	if _, err := federation.VerifyStatement(jwt, jwks); err != nil {
		v.Error = "signature verification failed"
		return v
	}

	v.Valid = true
	return v
}
