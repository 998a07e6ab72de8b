// Package credential defines authentication material stored by the console.
// Credentials are immutable: to change one, add a new one.
package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrInvalidCredential wraps validation failures.
var ErrInvalidCredential = errors.New("invalid credential")

// SecretType identifies what kind of secret a credential carries.
type SecretType string

const (
	SecretPassword    SecretType = "PASSWORD"
	SecretNT          SecretType = "NT"
	SecretRC4         SecretType = "RC4"
	SecretAES         SecretType = "AES"
	SecretKeytab      SecretType = "KEYTAB"
	SecretCertificate SecretType = "CERTIFICATE"
	SecretNone        SecretType = "NONE"
)

// Credential is a username/secret pair plus provenance metadata.
type Credential struct {
	Domain      string     `json:"domain,omitempty" yaml:"domain,omitempty"`
	Username    string     `json:"username" yaml:"username" validate:"required"`
	Secret      string     `json:"secret,omitempty" yaml:"secret,omitempty"`
	SecretType  SecretType `json:"stype" yaml:"stype" validate:"oneof=PASSWORD NT RC4 AES KEYTAB CERTIFICATE NONE"`
	Source      string     `json:"source,omitempty" yaml:"source,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Favorite    bool       `json:"favorite,omitempty" yaml:"favorite,omitempty"`
}

// ParseUser splits "DOMAIN\user" or "user@domain" into its parts.
func ParseUser(s string) (domain, username string) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, `\`); i >= 0 {
		return s[:i], s[i+1:]
	}
	if i := strings.LastIndex(s, "@"); i > 0 {
		return s[i+1:], s[:i]
	}
	return "", s
}

// New builds a password credential from a "DOMAIN\user" string.
func New(user, secret string) (*Credential, error) {
	domain, username := ParseUser(user)
	c := &Credential{
		Domain:     domain,
		Username:   username,
		Secret:     secret,
		SecretType: SecretPassword,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the credential's fields. An empty secret type defaults to
// PASSWORD.
func (c *Credential) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil credential", ErrInvalidCredential)
	}
	if c.SecretType == "" {
		c.SecretType = SecretPassword
	}
	c.SecretType = SecretType(strings.ToUpper(string(c.SecretType)))
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: field %s failed %q", ErrInvalidCredential, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return nil
}

// Redacted returns a copy whose secret is masked.
func (c *Credential) Redacted() *Credential {
	out := *c
	if out.Secret != "" {
		out.Secret = "********"
	}
	return &out
}

// Principal renders DOMAIN\user, or just user without a domain.
func (c *Credential) Principal() string {
	if c.Domain == "" {
		return c.Username
	}
	return c.Domain + `\` + c.Username
}

func (c *Credential) String() string {
	s := fmt.Sprintf("%s [%s]", c.Principal(), c.SecretType)
	if c.Source != "" {
		s += " source=" + c.Source
	}
	return s
}
