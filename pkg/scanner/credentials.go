package scanner

import (
	"fmt"
	"strconv"

	"github.com/vulntor/console/pkg/credential"
	"github.com/vulntor/console/pkg/params"
)

// CredentialLookup resolves stored credentials by id.
type CredentialLookup interface {
	Credential(id string) (*credential.Credential, bool)
}

// ResolveCredential returns the credential named by the credential
// parameter of a credentialed scanner.
func ResolveCredential(lookup CredentialLookup, p *params.Collection) (*credential.Credential, error) {
	raw, err := p.Get(params.Credential)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: %s", params.ErrMissingRequired, params.Credential)
	}
	id := strconv.Itoa(p.Int(params.Credential))
	c, ok := lookup.Credential(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCredential, id)
	}
	return c, nil
}
