// Package resolver implements the Trust Chain Resolver: given a target entity URL and an expected
// trust anchor URL, it walks the federation graph upward through authority hints, verifying every
// statement along the way, and reports whether the target is anchored where expected.
package resolver

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-jose/go-jose/v4"

	"github.com/dagregi/oidf-federation/errors"
	"github.com/dagregi/oidf-federation/federation"
	"github.com/dagregi/oidf-federation/httpfetch"
)

const (
	entityConfigurationPath    = "/.well-known/openid-federation"
	entityStatementContentType = "application/entity-statement+jwt"

	// maxHops bounds how many superiors the resolver will walk before giving up, per the hop cap
	// in the resolution algorithm.
	maxHops = 10
)

// ChainResult is the outcome of a resolution: whether the chain is valid, the statements gathered
// along the way (in order, target-first), and a full audit trail of errors and informational
// messages regardless of which hop failed.
type ChainResult struct {
	Valid      bool
	Statements []map[string]interface{}
	Errors     []string
	Messages   []string
}

func (r *ChainResult) fail(reason string) ChainResult {
	r.Errors = append(r.Errors, reason)
	return *r
}

func (r *ChainResult) succeed(message string) ChainResult {
	r.Valid = true
	r.Messages = append(r.Messages, message)
	return *r
}

// Resolver performs trust chain resolution using a Fetcher for all network access.
type Resolver struct {
	fetcher httpfetch.Fetcher
	logger  *slog.Logger
}

// New builds a Resolver. If logger is nil, slog.Default() is used.
func New(fetcher httpfetch.Fetcher, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{fetcher: fetcher, logger: logger}
}

// Resolve walks the federation graph from targetURL up to anchorURL and returns the outcome. It
// never returns an error: every failure mode is recorded in the returned ChainResult, per the
// resolver's accumulate-don't-throw error propagation policy.
func (r *Resolver) Resolve(ctx context.Context, targetURL, anchorURL string) ChainResult {
	result := ChainResult{}

	targetConfig, err := r.fetchAndVerifyConfig(ctx, targetURL)
	if err != nil {
		r.logger.Warn("target fetch/verify failed", "target", targetURL, "error", err)
		result.Errors = append(result.Errors, err.Error())
		return result.fail("target fetch/verify failed")
	}
	result.Statements = append(result.Statements, targetConfig)

	currentID, _ := targetConfig["iss"].(string)
	visited := map[string]struct{}{currentID: {}}

	anchorID, err := r.resolveAnchorID(ctx, anchorURL)
	if err != nil {
		r.logger.Warn("anchor fetch/verify failed", "anchor", anchorURL, "error", err)
		result.Errors = append(result.Errors, err.Error())
		return result.fail("anchor fetch/verify failed")
	}

	hints := federation.ClaimStringSlice(targetConfig["authority_hints"])
	if len(hints) == 0 {
		if currentID == anchorID {
			return result.succeed("entity is the anchor")
		}
		return result.fail("no hints and not the anchor")
	}

	hops := 0
	for len(hints) > 0 && hops < maxHops {
		hops++
		superiorURL := hints[0]

		if _, seen := visited[superiorURL]; seen {
			return result.fail("cycle")
		}

		superiorConfig, err := r.fetchAndVerifyConfig(ctx, superiorURL)
		if err != nil {
			r.logger.Warn("superior fetch/verify failed", "superior", superiorURL, "hop", hops, "error", err)
			result.Errors = append(result.Errors, err.Error())
			return result.fail("superior fetch failed")
		}
		result.Statements = append(result.Statements, superiorConfig)

		superiorID, _ := superiorConfig["iss"].(string)
		visited[superiorID] = struct{}{}

		superiorJWKS, err := federation.JWKSFromClaims(superiorConfig)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			return result.fail("superior configuration missing jwks")
		}

		subStmt, err := r.fetchAndVerifySubordinate(ctx, superiorURL, currentID, superiorJWKS)
		if err != nil {
			r.logger.Warn("subordinate fetch/verify failed", "superior", superiorURL, "subject", currentID, "error", err)
			result.Errors = append(result.Errors, err.Error())
			return result.fail("subordinate fetch failed")
		}

		if stmtIss, _ := subStmt["iss"].(string); stmtIss != superiorID {
			return result.fail("issuer mismatch")
		}
		if stmtSub, _ := subStmt["sub"].(string); stmtSub != currentID {
			return result.fail("subject mismatch")
		}
		result.Statements = append(result.Statements, subStmt)

		if superiorID == anchorID {
			return result.succeed("reached anchor")
		}

		currentID = superiorID
		hints = federation.ClaimStringSlice(superiorConfig["authority_hints"])
		if len(hints) == 0 {
			if currentID == anchorID {
				return result.succeed("reached anchor at leaf")
			}
			return result.fail("reached non-anchor terminal")
		}
	}

	return result.fail("hop limit exceeded")
}

// resolveAnchorID derives the anchor's declared entity identifier by fetching its Entity
// Configuration and reading iss, rather than relying on a hard-coded URL-to-identity table.
func (r *Resolver) resolveAnchorID(ctx context.Context, anchorURL string) (string, error) {
	config, err := r.fetchAndVerifyConfig(ctx, anchorURL)
	if err != nil {
		return "", err
	}
	iss, _ := config["iss"].(string)
	if iss == "" {
		return "", errors.Kindf(errors.StructuralFailure, "anchor configuration at %s has no iss", anchorURL)
	}
	return iss, nil
}

// fetchAndVerifyConfig fetches the Entity Configuration at url's well-known path and verifies it
// as a self-signed statement.
func (r *Resolver) fetchAndVerifyConfig(ctx context.Context, base string) (map[string]interface{}, error) {
	target, err := joinPath(base, entityConfigurationPath)
	if err != nil {
		return nil, err
	}

	body, err := r.fetcher.Get(ctx, target, entityStatementContentType)
	if err != nil {
		return nil, err
	}

	return federation.VerifySelfSigned(string(body))
}

// fetchAndVerifySubordinate fetches the Subordinate Statement superiorURL/fetch?sub=subID and
// verifies it against superiorJWKS.
func (r *Resolver) fetchAndVerifySubordinate(
	ctx context.Context,
	superiorURL, subID string,
	superiorJWKS jose.JSONWebKeySet,
) (map[string]interface{}, error) {
	target, err := joinPath(superiorURL, "/fetch")
	if err != nil {
		return nil, err
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return nil, errors.Kindf(errors.FetchFailure, "invalid fetch URL %q: %w", target, err)
	}
	query := parsed.Query()
	query.Set("sub", subID)
	parsed.RawQuery = query.Encode()

	body, err := r.fetcher.Get(ctx, parsed.String(), entityStatementContentType)
	if err != nil {
		return nil, err
	}

	return federation.VerifyStatement(string(body), superiorJWKS)
}

func joinPath(base, suffix string) (string, error) {
	trimmed := strings.TrimSuffix(base, "/")
	if _, err := url.Parse(trimmed); err != nil {
		return "", errors.Kindf(errors.FetchFailure, "invalid URL %q: %w", base, err)
	}
	return trimmed + suffix, nil
}
