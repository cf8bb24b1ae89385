package federation

import "testing"

func TestKeyManagerInitialize(t *testing.T) {
	km := NewKeyManager()

	if _, err := km.PublicJWK(); err == nil {
		t.Errorf("PublicJWK should fail before Initialize")
	}

	if err := km.Initialize("ta"); err != nil {
		t.Fatalf("Initialize failed: %s", err)
	}

	kid, err := km.KeyID()
	if err != nil {
		t.Fatalf("KeyID failed: %s", err)
	}
	if kid != "ta-key-1" {
		t.Errorf("unexpected kid: %s", kid)
	}

	jwk, err := km.PublicJWK()
	if err != nil {
		t.Fatalf("PublicJWK failed: %s", err)
	}
	if jwk.KeyID != kid {
		t.Errorf("JWK kid %q does not match KeyID %q", jwk.KeyID, kid)
	}
	if jwk.IsPublic() == false {
		t.Errorf("PublicJWK returned a key that is not public")
	}
}

func TestKeyManagerInitializeTwice(t *testing.T) {
	km := NewKeyManager()
	if err := km.Initialize("ta"); err != nil {
		t.Fatalf("first Initialize failed: %s", err)
	}
	if err := km.Initialize("ta"); err == nil {
		t.Errorf("second Initialize should fail")
	}
}
