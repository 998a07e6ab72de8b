package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUser(t *testing.T) {
	tests := []struct {
		in         string
		wantDomain string
		wantUser   string
	}{
		{`NORTH\hodor`, "NORTH", "hodor"},
		{"hodor@north.local", "north.local", "hodor"},
		{"hodor", "", "hodor"},
		{`  NORTH\hodor  `, "NORTH", "hodor"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, u := ParseUser(tt.in)
			assert.Equal(t, tt.wantDomain, d)
			assert.Equal(t, tt.wantUser, u)
		})
	}
}

func TestNew(t *testing.T) {
	c, err := New(`NORTH\hodor`, "hodor")
	require.NoError(t, err)
	assert.Equal(t, "NORTH", c.Domain)
	assert.Equal(t, "hodor", c.Username)
	assert.Equal(t, SecretPassword, c.SecretType)

	_, err = New(`NORTH\`, "x")
	require.ErrorIs(t, err, ErrInvalidCredential)
}

func TestValidate(t *testing.T) {
	c := &Credential{Username: "hodor2", Secret: "aad3b435", SecretType: "nt"}
	require.NoError(t, c.Validate())
	assert.Equal(t, SecretNT, c.SecretType)

	bad := &Credential{Username: "hodor2", SecretType: "TICKET"}
	require.ErrorIs(t, bad.Validate(), ErrInvalidCredential)

	var nilCred *Credential
	require.ErrorIs(t, nilCred.Validate(), ErrInvalidCredential)
}

func TestRedactedAndString(t *testing.T) {
	c := &Credential{Domain: "NORTH", Username: "hodor", Secret: "hodor", SecretType: SecretPassword, Source: "PLUGIN EXAMPLE"}

	r := c.Redacted()
	assert.Equal(t, "********", r.Secret)
	assert.Equal(t, "hodor", c.Secret, "original must keep its secret")
	assert.Equal(t, `NORTH\hodor [PASSWORD] source=PLUGIN EXAMPLE`, c.String())
}
