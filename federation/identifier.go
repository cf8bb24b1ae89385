package federation

import (
	"encoding/json"
	"net/url"

	"github.com/dagregi/oidf-federation/errors"
)

// Identifier is an OpenID Federation entity identifier: an absolute URL used as both the iss and
// sub of a self-signed Entity Configuration. It is immutable once constructed.
type Identifier struct {
	url url.URL
}

// NewIdentifier parses and validates a candidate entity identifier.
func NewIdentifier(identifier string) (Identifier, error) {
	parsed, err := url.Parse(identifier)
	if err != nil {
		return Identifier{}, errors.Kindf(errors.BadRequest, "invalid entity identifier %q: %w", identifier, err)
	}

	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return Identifier{}, errors.Kindf(errors.BadRequest, "entity identifier %q must be http(s)", identifier)
	}
	if parsed.Fragment != "" {
		return Identifier{}, errors.Kindf(errors.BadRequest, "entity identifier %q must not have a fragment", identifier)
	}
	if parsed.RawQuery != "" {
		return Identifier{}, errors.Kindf(errors.BadRequest, "entity identifier %q must not have query parameters", identifier)
	}

	return Identifier{url: *parsed}, nil
}

// String returns the canonical URL form of the identifier.
func (i Identifier) String() string {
	return i.url.String()
}

// Equals reports whether two identifiers name the same entity.
func (i Identifier) Equals(other Identifier) bool {
	return i.url == other.url
}

// IsZero reports whether this is the zero-value Identifier.
func (i Identifier) IsZero() bool {
	return i.url == url.URL{}
}

func (i Identifier) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

func (i *Identifier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := NewIdentifier(s)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
