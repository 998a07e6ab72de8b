package examples

import (
	"context"
	"fmt"
	"strconv"

	"github.com/vulntor/console/pkg/clients"
	"github.com/vulntor/console/pkg/host"
	"github.com/vulntor/console/pkg/plugin"
)

// SMBClient creates an SMB client session and logs in.
func SMBClient(lab Lab) plugin.Plugin {
	return clientTutorial("smbclient", "SMB", lab)
}

// LDAPClient creates an LDAP client session and logs in.
func LDAPClient(lab Lab) plugin.Plugin {
	return clientTutorial("ldapclient", "LDAP", lab)
}

func clientTutorial(name, protocol string, lab Lab) plugin.Plugin {
	return &plugin.Func{
		PluginName: name,
		Desc:       fmt.Sprintf("Create a %s client session and log in", protocol),
		Fn: func(ctx context.Context, h *host.Host) error {
			tid, cid, err := addLabIdentity(ctx, h, lab)
			if err != nil {
				return err
			}
			h.Printf("Target and credential added")

			sid, err := h.CreateClient(ctx, protocol, "NTLM", cid, tid)
			if err != nil {
				return err
			}
			h.Printf("%s Session created", protocol)

			if lab.ClientPort > 0 {
				if _, err := h.Command(ctx, sid, "setparam", clients.ParamPort, strconv.Itoa(lab.ClientPort)); err != nil {
					return err
				}
			}

			if _, err := h.Command(ctx, sid, "login"); err != nil {
				return err
			}
			h.Printf("Login successful")

			v, err := h.Command(ctx, sid, "info")
			if err != nil {
				return err
			}
			info, ok := v.(clients.Info)
			if !ok {
				return fmt.Errorf("info: unexpected %T", v)
			}
			h.Printf("Connected to %s:%d as %s (%s)", info.Target, info.Port, info.Principal, info.AuthMethod)
			return nil
		},
	}
}
