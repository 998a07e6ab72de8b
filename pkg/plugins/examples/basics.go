package examples

import (
	"context"
	"strings"

	"github.com/vulntor/console/pkg/credential"
	"github.com/vulntor/console/pkg/host"
	"github.com/vulntor/console/pkg/plugin"
	"github.com/vulntor/console/pkg/target"
)

// Targets shows the three ways of adding targets. Targets sharing a key
// are merged into the existing entry, so ids stay stable.
func Targets() plugin.Plugin {
	return &plugin.Func{
		PluginName: "targets",
		Desc:       "Add targets one by one, as objects and in bulk",
		Fn: func(ctx context.Context, h *host.Host) error {
			h.Printf("=== Example 1: Basic target creation ===")
			tid, _, err := h.AddTarget(ctx, "192.168.56.11")
			if err != nil {
				return err
			}
			h.Printf("Created target with ID: %s", tid)

			h.Printf("")
			h.Printf("=== Example 2: Creating target with hostname ===")
			tid2, err := h.AddTargetObj(ctx, &target.Target{IP: "192.168.56.11", Hostname: "north.local"})
			if err != nil {
				return err
			}
			h.Printf("Created target with ID: %s", tid2)

			h.Printf("")
			h.Printf("=== Example 3: Creating multiple targets at once ===")
			tids, err := h.AddTargetObjMulti(ctx, []*target.Target{{IP: "192.168.56.12"}, {IP: "192.168.56.22"}})
			if err != nil {
				return err
			}
			h.Printf("Created targets with IDs: %s", strings.Join(tids, ", "))

			h.Printf("")
			h.Printf("=== All Targets in System ===")
			for _, e := range h.Targets() {
				h.Printf("Target ID: %s", e.ID)
				h.Printf("  %s", e.Target)
				h.Printf("")
			}
			return nil
		},
	}
}

// Credentials adds a fully described credential object and lists the table.
func Credentials() plugin.Plugin {
	return &plugin.Func{
		PluginName: "credentials",
		Desc:       "Add a credential object and list all credentials",
		Fn: func(ctx context.Context, h *host.Host) error {
			cid, err := h.AddCredentialObj(ctx, &credential.Credential{
				Domain:      "NORTH",
				Username:    "hodor2",
				Secret:      "hodor2",
				SecretType:  credential.SecretPassword,
				Source:      "PLUGIN EXAMPLE",
				Description: "Test credential for demonstration",
				Favorite:    true,
			})
			if err != nil {
				return err
			}
			h.Printf("Successfully added credential with ID: %s", cid)

			h.Printf("")
			h.Printf("All credentials in the system:")
			for _, e := range h.Credentials() {
				h.Printf("ID: %s | %s | Source: %s", e.ID, e.Credential.Principal(), e.Credential.Source)
			}
			return nil
		},
	}
}

// Sessions creates an SMB client and prints every session's type and
// flattened parameters.
func Sessions(lab Lab) plugin.Plugin {
	return &plugin.Func{
		PluginName: "sessions",
		Desc:       "Create a client session and inspect all sessions",
		Fn: func(ctx context.Context, h *host.Host) error {
			tid, cid, err := addLabIdentity(ctx, h, lab)
			if err != nil {
				return err
			}
			h.Printf("Target and credential added")

			if _, err := h.CreateClient(ctx, "SMB", "NTLM", cid, tid); err != nil {
				return err
			}
			h.Printf("SMB Session created")

			h.Printf("Sessions:")
			for _, e := range h.Sessions() {
				h.Printf("Session ID: %s", e.ID)
				h.Printf("Major Type: %s", e.Session.MajorType())
				h.Printf("Subtype: %s", e.Session.SubType())
				h.Printf("Params: %v", e.Session.Params().Flatten())
				h.Printf("")
			}
			return nil
		},
	}
}

func addLabIdentity(ctx context.Context, h *host.Host, lab Lab) (tid, cid string, err error) {
	tid, _, err = h.AddTarget(ctx, lab.Target)
	if err != nil {
		return "", "", err
	}
	cid, _, err = h.AddCredential(ctx, lab.User, lab.Secret)
	if err != nil {
		return "", "", err
	}
	return tid, cid, nil
}
