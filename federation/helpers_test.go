package federation

import (
	"testing"

	"github.com/go-jose/go-jose/v4"
)

func jwksOf(t *testing.T, keys ...jose.JSONWebKey) jose.JSONWebKeySet {
	t.Helper()
	return jose.JSONWebKeySet{Keys: keys}
}
