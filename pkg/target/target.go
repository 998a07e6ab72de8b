// Package target defines the Target data model: a remote host identified by
// an address and/or hostname. Identity fields never change after creation;
// targets can only be enriched with derived attributes.
package target

import (
	"errors"
	"fmt"
	"maps"
	"net"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var (
	// ErrNoAddress is returned when neither IP nor hostname is set.
	ErrNoAddress = errors.New("target requires an ip or a hostname")

	// ErrInvalidTarget wraps field validation failures.
	ErrInvalidTarget = errors.New("invalid target")
)

// Target represents a remote machine.
type Target struct {
	IP          string         `json:"ip,omitempty" yaml:"ip,omitempty" validate:"omitempty,ip"`
	Hostname    string         `json:"hostname,omitempty" yaml:"hostname,omitempty" validate:"omitempty,hostname_rfc1123"`
	Domain      string         `json:"domain,omitempty" yaml:"domain,omitempty" validate:"omitempty,fqdn|hostname_rfc1123"`
	DCIP        string         `json:"dcip,omitempty" yaml:"dcip,omitempty" validate:"omitempty,ip"`
	Realm       string         `json:"realm,omitempty" yaml:"realm,omitempty"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Source      string         `json:"source,omitempty" yaml:"source,omitempty"`
	Ports       []int          `json:"ports,omitempty" yaml:"ports,omitempty" validate:"dive,min=1,max=65535"`
	Extra       map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Parse builds a target from a plain address. IP literals populate IP,
// everything else is treated as a hostname.
func Parse(address string) (*Target, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, ErrNoAddress
	}
	t := &Target{}
	if ip := net.ParseIP(address); ip != nil {
		t.IP = ip.String()
	} else {
		t.Hostname = strings.ToLower(address)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the target's fields.
func (t *Target) Validate() error {
	if t == nil || (t.IP == "" && t.Hostname == "") {
		return ErrNoAddress
	}
	if err := validate.Struct(t); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: field %s failed %q (value %v)", ErrInvalidTarget, fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	return nil
}

// Key returns the normalised dedup key used to reuse targets discovered by
// scans. Hostnames win over IPs because a host may resolve to many addresses.
func (t *Target) Key() string {
	if t.Hostname != "" {
		return t.hostKey()
	}
	return "i:" + t.IP
}

// Keys returns every identity key of t, hostname key first.
func (t *Target) Keys() []string {
	keys := make([]string, 0, 2)
	if t.Hostname != "" {
		keys = append(keys, t.hostKey())
	}
	if t.IP != "" {
		keys = append(keys, "i:"+t.IP)
	}
	return keys
}

// SameHost reports whether t and other can describe one machine: their
// hostnames match or at least one of them has none.
func (t *Target) SameHost(other *Target) bool {
	if t.Hostname == "" || other.Hostname == "" {
		return true
	}
	return t.hostKey() == other.hostKey()
}

func (t *Target) hostKey() string {
	return "h:" + strings.ToLower(strings.TrimSuffix(t.Hostname, "."))
}

// Address returns the preferred dial address.
func (t *Target) Address() string {
	if t.IP != "" {
		return t.IP
	}
	return t.Hostname
}

// Enrich returns a copy carrying additional attributes from other. Fields
// already set on t are kept; only empty fields and new extra keys are filled.
func (t *Target) Enrich(other *Target) *Target {
	out := t.Clone()
	if other == nil {
		return out
	}
	if out.IP == "" {
		out.IP = other.IP
	}
	if out.Hostname == "" {
		out.Hostname = other.Hostname
	}
	if out.Domain == "" {
		out.Domain = other.Domain
	}
	if out.DCIP == "" {
		out.DCIP = other.DCIP
	}
	if out.Realm == "" {
		out.Realm = other.Realm
	}
	if out.Description == "" {
		out.Description = other.Description
	}
	for _, p := range other.Ports {
		if !slices.Contains(out.Ports, p) {
			out.Ports = append(out.Ports, p)
		}
	}
	slices.Sort(out.Ports)
	for k, v := range other.Extra {
		if out.Extra == nil {
			out.Extra = make(map[string]any)
		}
		if _, exists := out.Extra[k]; !exists {
			out.Extra[k] = v
		}
	}
	return out
}

// Clone returns a deep copy.
func (t *Target) Clone() *Target {
	if t == nil {
		return nil
	}
	out := *t
	out.Ports = slices.Clone(t.Ports)
	if t.Extra != nil {
		out.Extra = maps.Clone(t.Extra)
	}
	return &out
}

func (t *Target) String() string {
	var b strings.Builder
	switch {
	case t.IP != "" && t.Hostname != "":
		fmt.Fprintf(&b, "%s (%s)", t.IP, t.Hostname)
	case t.IP != "":
		b.WriteString(t.IP)
	default:
		b.WriteString(t.Hostname)
	}
	if t.Domain != "" {
		fmt.Fprintf(&b, " domain=%s", t.Domain)
	}
	if t.Source != "" {
		fmt.Fprintf(&b, " source=%s", t.Source)
	}
	return b.String()
}
