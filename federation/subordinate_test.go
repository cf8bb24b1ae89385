package federation

import "testing"

func TestBuildSubordinateStatementUnknownSubordinate(t *testing.T) {
	ctx := newTestContext(t, "superior")
	unknown := mustIdentifier(t, "https://unknown.example.com")

	if _, err := BuildSubordinateStatement(ctx, unknown, "https://superior.example.com/fetch"); err == nil {
		t.Errorf("expected an error for an unregistered subordinate")
	}
}

func TestBuildSubordinateStatement(t *testing.T) {
	ctx := newTestContext(t, "superior")
	subID := mustIdentifier(t, "https://sub.example.com")
	ctx.AddSubordinate(SubordinateRecord{
		EntityID: subID,
		JWKS:     map[string]interface{}{"keys": []interface{}{}},
		Metadata: map[string]interface{}{"openid_relying_party": map[string]interface{}{}},
	})

	claims, err := BuildSubordinateStatement(ctx, subID, "https://superior.example.com/fetch")
	if err != nil {
		t.Fatalf("BuildSubordinateStatement failed: %s", err)
	}

	if claims["iss"] != ctx.EntityID().String() {
		t.Errorf("unexpected iss: %+v", claims["iss"])
	}
	if claims["sub"] != subID.String() {
		t.Errorf("unexpected sub: %+v", claims["sub"])
	}
	if claims["iss"] == claims["sub"] {
		t.Errorf("subordinate statement must have iss != sub")
	}
	if claims["aud"] != subID.String() {
		t.Errorf("aud should equal sub")
	}

	sourceEndpoint, ok := claims["source_endpoint"].(string)
	if !ok || sourceEndpoint != "https://superior.example.com/fetch?sub=https%3A%2F%2Fsub.example.com" {
		t.Errorf("unexpected source_endpoint: %+v", claims["source_endpoint"])
	}
}

func TestSignSubordinateStatementRoundTrip(t *testing.T) {
	ctx := newTestContext(t, "superior")
	signer := NewSigner(ctx.KeyManager())
	subID := mustIdentifier(t, "https://sub.example.com")
	ctx.AddSubordinate(SubordinateRecord{EntityID: subID})

	compact, err := SignSubordinateStatement(ctx, signer, subID, "https://superior.example.com/fetch")
	if err != nil {
		t.Fatalf("SignSubordinateStatement failed: %s", err)
	}

	superiorJWK, err := ctx.KeyManager().PublicJWK()
	if err != nil {
		t.Fatalf("PublicJWK failed: %s", err)
	}

	verified, err := VerifyStatement(compact, jwksOf(t, superiorJWK))
	if err != nil {
		t.Fatalf("VerifyStatement failed: %s", err)
	}
	if verified["sub"] != subID.String() {
		t.Errorf("unexpected sub after verification: %+v", verified["sub"])
	}
}
