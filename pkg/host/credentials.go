package host

import (
	"context"

	"github.com/vulntor/console/pkg/arena"
	"github.com/vulntor/console/pkg/credential"
	"github.com/vulntor/console/pkg/event"
)

// CredentialEntry pairs a credential with its id.
type CredentialEntry struct {
	ID         string
	Credential *credential.Credential
}

// AddCredential stores a password credential for user ("DOMAIN\user" or
// "user@domain").
func (h *Host) AddCredential(ctx context.Context, user, secret string) (string, *credential.Credential, error) {
	c, err := credential.New(user, secret)
	if err != nil {
		return "", nil, err
	}
	c.Source = "user"
	id, err := h.AddCredentialObj(ctx, c)
	if err != nil {
		return "", nil, err
	}
	stored, _ := h.Credential(id)
	return id, stored, nil
}

// AddCredentialObj validates and stores c. Credentials are never
// deduplicated.
func (h *Host) AddCredentialObj(ctx context.Context, c *credential.Credential) (string, error) {
	if err := h.checkOpen(); err != nil {
		return "", err
	}
	if c == nil {
		return "", credential.ErrInvalidCredential
	}
	stored := *c
	if err := stored.Validate(); err != nil {
		return "", err
	}
	id := arena.ID(h.credentials.Insert(&stored))
	h.bus.Publish(ctx, event.TopicCredential, CredentialEntry{ID: id, Credential: stored.Redacted()})
	return id, nil
}

// Credential returns a copy of the stored credential.
func (h *Host) Credential(id string) (*credential.Credential, bool) {
	c, ok := h.credentials.GetString(id)
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

// Credentials lists stored credentials in id order.
func (h *Host) Credentials() []CredentialEntry {
	snap := h.credentials.Snapshot()
	out := make([]CredentialEntry, 0, len(snap))
	for _, e := range snap {
		cp := *e.Value
		out = append(out, CredentialEntry{ID: arena.ID(e.ID), Credential: &cp})
	}
	return out
}
