// Package sso guards the single sign-on handoff: a token is only ever placed
// in a redirect whose origin is on the configured allow-list.
package sso

import (
	"errors"
	"net/url"
	"strings"

	"github.com/iliyamo/iot-auth-service/internal/utils"
)

const maxRedirectLength = 256

// ErrRedirectNotAllowed is returned by BuildRedirect for targets that fail
// IsValidRedirectURI.
var ErrRedirectNotAllowed = errors.New("redirect target not allowed")

// Validator holds an immutable origin allow-list; it is safe for concurrent use.
type Validator struct {
	origins map[string]struct{}
}

// NewValidator normalises each entry to scheme://host[:port].
// Malformed entries are ignored.
func NewValidator(origins []string) *Validator {
	v := &Validator{origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if norm, ok := origin(strings.TrimSpace(o)); ok {
			v.origins[norm] = struct{}{}
		}
	}
	return v
}

// IsValidRedirectURI reports whether uri may receive a token. An empty uri
// means no SSO handoff was requested and is always valid. Otherwise the
// origin of uri must equal an allow-listed origin exactly; paths, queries
// and fragments are ignored.
func (v *Validator) IsValidRedirectURI(uri string) bool {
	if uri == "" {
		return true
	}
	norm, ok := origin(uri)
	if !ok {
		return false
	}
	_, allowed := v.origins[norm]
	return allowed
}

// origin returns the lower-cased scheme://host[:port] of raw with default
// ports dropped, mirroring the browser URL origin.
func origin(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Opaque != "" || u.User != nil {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host += ":" + port
	}
	return scheme + "://" + host, true
}

// ValidateParams checks the shape of the SSO request fields before any
// allow-list decision. Empty values are not checked.
func ValidateParams(redirectURI, state, nonce string) []utils.FieldError {
	var errs []utils.FieldError
	if redirectURI != "" {
		if len(redirectURI) > maxRedirectLength {
			errs = append(errs, utils.FieldError{Field: "redirect_uri", Message: "must be at most 256 characters"})
		} else if strings.ContainsAny(redirectURI, `<>"'`) {
			errs = append(errs, utils.FieldError{Field: "redirect_uri", Message: "contains forbidden characters"})
		}
	}
	if state != "" && !utils.IsValidSSOToken(state) {
		errs = append(errs, utils.FieldError{Field: "state", Message: "must be alphanumeric, at most 128 characters"})
	}
	if nonce != "" && !utils.IsValidSSOToken(nonce) {
		errs = append(errs, utils.FieldError{Field: "nonce", Message: "must be alphanumeric, at most 128 characters"})
	}
	return errs
}

// BuildRedirect places the access token and state in the fragment of uri so
// they never reach the target server's logs. It re-validates uri itself.
func (v *Validator) BuildRedirect(uri, accessToken, state string) (string, error) {
	if uri == "" || !v.IsValidRedirectURI(uri) {
		return "", ErrRedirectNotAllowed
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", ErrRedirectNotAllowed
	}
	q := url.Values{}
	q.Set("access_token", accessToken)
	if state != "" {
		q.Set("state", state)
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String() + "#" + q.Encode(), nil
}
