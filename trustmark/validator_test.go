package trustmark

import (
	"strings"
	"testing"

	"github.com/dagregi/oidf-federation/federation"
)

func newTestContext(t *testing.T, name string, clock federation.Clock) *federation.EntityContext {
	t.Helper()
	km := federation.NewKeyManager()
	if err := km.Initialize(name); err != nil {
		t.Fatalf("failed to initialize key manager: %s", err)
	}
	self, err := federation.NewIdentifier("https://" + name + ".example.com")
	if err != nil {
		t.Fatalf("failed to build identifier: %s", err)
	}
	return federation.NewEntityContext(self, km, clock)
}

func issuerConfigStatement(t *testing.T, issuerCtx *federation.EntityContext) map[string]interface{} {
	t.Helper()
	claims, err := federation.BuildEntityConfiguration(issuerCtx, issuerCtx.EntityID().String()+"/fetch", issuerCtx.EntityID().String()+"/manage/subordinates")
	if err != nil {
		t.Fatalf("BuildEntityConfiguration failed: %s", err)
	}
	return claims
}

func TestValidateHappyPath(t *testing.T) {
	clock := federation.FixedClock(1000)
	issuerCtx := newTestContext(t, "edugain", clock)
	subjectCtx := newTestContext(t, "op-umu", clock)

	trustMarkIssuer := federation.NewTrustMarkIssuer(issuerCtx, federation.NewSigner(issuerCtx.KeyManager()))
	markID, err := federation.NewIdentifier("https://refeds.org/sirtfi")
	if err != nil {
		t.Fatalf("failed to build trust mark id: %s", err)
	}
	jwt, err := trustMarkIssuer.Issue(markID, subjectCtx.EntityID(), nil)
	if err != nil {
		t.Fatalf("Issue failed: %s", err)
	}

	subjectReceiver := federation.NewTrustMarkIssuer(subjectCtx, federation.NewSigner(subjectCtx.KeyManager()))
	if err := subjectReceiver.AddReceived(jwt); err != nil {
		t.Fatalf("AddReceived failed: %s", err)
	}

	entityConfig, err := federation.BuildEntityConfiguration(subjectCtx, subjectCtx.EntityID().String()+"/fetch", subjectCtx.EntityID().String()+"/manage/subordinates")
	if err != nil {
		t.Fatalf("BuildEntityConfiguration failed: %s", err)
	}

	chain := []map[string]interface{}{issuerConfigStatement(t, issuerCtx)}
	results := Validate(entityConfig, subjectCtx.EntityID().String(), chain, clock)

	if len(results) != 1 {
		t.Fatalf("expected 1 validation result, got %d", len(results))
	}
	if !results[0].Valid {
		t.Fatalf("expected the trust mark to validate, got error: %s", results[0].Error)
	}
	if results[0].Issuer != issuerCtx.EntityID().String() || results[0].Subject != subjectCtx.EntityID().String() {
		t.Errorf("unexpected issuer/subject: %+v", results[0])
	}
}

func TestValidateSubjectMismatch(t *testing.T) {
	clock := federation.FixedClock(1000)
	issuerCtx := newTestContext(t, "edugain", clock)
	subjectCtx := newTestContext(t, "op-umu", clock)
	someoneElse := newTestContext(t, "someone-else", clock)

	trustMarkIssuer := federation.NewTrustMarkIssuer(issuerCtx, federation.NewSigner(issuerCtx.KeyManager()))
	markID, _ := federation.NewIdentifier("https://refeds.org/sirtfi")
	jwt, err := trustMarkIssuer.Issue(markID, subjectCtx.EntityID(), nil)
	if err != nil {
		t.Fatalf("Issue failed: %s", err)
	}

	result := validateOne(jwt, someoneElse.EntityID().String(), []map[string]interface{}{issuerConfigStatement(t, issuerCtx)}, clock)
	if result.Valid {
		t.Fatalf("expected subject mismatch to invalidate the mark")
	}
	if result.Error != "subject mismatch" {
		t.Errorf("unexpected error: %q", result.Error)
	}
}

func TestValidateExpired(t *testing.T) {
	clock := federation.FixedClock(1000)
	issuerCtx := newTestContext(t, "edugain", clock)
	subjectCtx := newTestContext(t, "op-umu", clock)

	trustMarkIssuer := federation.NewTrustMarkIssuer(issuerCtx, federation.NewSigner(issuerCtx.KeyManager()))
	markID, _ := federation.NewIdentifier("https://refeds.org/sirtfi")
	lifetime := int64(10)
	jwt, err := trustMarkIssuer.Issue(markID, subjectCtx.EntityID(), &lifetime)
	if err != nil {
		t.Fatalf("Issue failed: %s", err)
	}

	laterClock := federation.FixedClock(int64(clock) + lifetime + 1)
	result := validateOne(jwt, subjectCtx.EntityID().String(), []map[string]interface{}{issuerConfigStatement(t, issuerCtx)}, laterClock)
	if result.Valid {
		t.Fatalf("expected an expired mark to be invalid")
	}
	if result.Error != "expired" {
		t.Errorf("unexpected error: %q", result.Error)
	}
}

func TestValidateIssuerNotInChain(t *testing.T) {
	clock := federation.FixedClock(1000)
	issuerCtx := newTestContext(t, "edugain", clock)
	subjectCtx := newTestContext(t, "op-umu", clock)
	unrelatedCtx := newTestContext(t, "unrelated", clock)

	trustMarkIssuer := federation.NewTrustMarkIssuer(issuerCtx, federation.NewSigner(issuerCtx.KeyManager()))
	markID, _ := federation.NewIdentifier("https://refeds.org/sirtfi")
	jwt, err := trustMarkIssuer.Issue(markID, subjectCtx.EntityID(), nil)
	if err != nil {
		t.Fatalf("Issue failed: %s", err)
	}

	result := validateOne(jwt, subjectCtx.EntityID().String(), []map[string]interface{}{issuerConfigStatement(t, unrelatedCtx)}, clock)
	if result.Valid {
		t.Fatalf("expected a mark whose issuer is absent from the chain to be invalid")
	}
	if result.Error != "issuer not in chain" {
		t.Errorf("unexpected error: %q", result.Error)
	}
}

func TestValidateTamperedSignature(t *testing.T) {
	clock := federation.FixedClock(1000)
	issuerCtx := newTestContext(t, "edugain", clock)
	subjectCtx := newTestContext(t, "op-umu", clock)

	trustMarkIssuer := federation.NewTrustMarkIssuer(issuerCtx, federation.NewSigner(issuerCtx.KeyManager()))
	markID, _ := federation.NewIdentifier("https://refeds.org/sirtfi")
	jwt, err := trustMarkIssuer.Issue(markID, subjectCtx.EntityID(), nil)
	if err != nil {
		t.Fatalf("Issue failed: %s", err)
	}

	segments := strings.Split(jwt, ".")
	if len(segments) != 3 {
		t.Fatalf("expected 3 JWT segments, got %d", len(segments))
	}
	last := []rune(segments[2])
	if last[0] == 'A' {
		last[0] = 'B'
	} else {
		last[0] = 'A'
	}
	segments[2] = string(last)
	tampered := strings.Join(segments, ".")

	result := validateOne(tampered, subjectCtx.EntityID().String(), []map[string]interface{}{issuerConfigStatement(t, issuerCtx)}, clock)
	if result.Valid {
		t.Fatalf("expected a tampered signature to be invalid")
	}
	if result.Error != "signature verification failed" {
		t.Errorf("unexpected error: %q", result.Error)
	}
}

func TestValidateMultipleMarks(t *testing.T) {
	clock := federation.FixedClock(1000)
	issuerCtx := newTestContext(t, "edugain", clock)
	subjectCtx := newTestContext(t, "op-umu", clock)

	trustMarkIssuer := federation.NewTrustMarkIssuer(issuerCtx, federation.NewSigner(issuerCtx.KeyManager()))
	sirtfi, _ := federation.NewIdentifier("https://refeds.org/sirtfi")
	rAndS, _ := federation.NewIdentifier("https://refeds.org/research-and-scholarship")

	sirtfiJWT, err := trustMarkIssuer.Issue(sirtfi, subjectCtx.EntityID(), nil)
	if err != nil {
		t.Fatalf("Issue failed: %s", err)
	}
	rAndSJWT, err := trustMarkIssuer.Issue(rAndS, subjectCtx.EntityID(), nil)
	if err != nil {
		t.Fatalf("Issue failed: %s", err)
	}

	entityConfig := map[string]interface{}{
		"trust_marks": []interface{}{sirtfiJWT, rAndSJWT},
	}

	results := Validate(entityConfig, subjectCtx.EntityID().String(), []map[string]interface{}{issuerConfigStatement(t, issuerCtx)}, clock)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, result := range results {
		if !result.Valid {
			t.Errorf("expected mark %s to validate, got error: %s", result.ID, result.Error)
		}
	}
}
