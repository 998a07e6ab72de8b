package params

import "time"

// Standard parameter names shared by scanner and client sessions.
const (
	Targets       = "targets"
	Workers       = "workers"
	Timeout       = "timeout"
	ResultHeaders = "resultheaders"
	Info          = "info"
	ShowErrors    = "showerrors"
	Credential    = "credential"
	AuthType      = "authtype"
	Protocol      = "protocol"
	AuthMethod    = "authmethod"
	Target        = "target"
)

// ScannerBase returns the parameters every scanner session carries.
// headers describe the result table; the first column is always the target.
func ScannerBase(info string, headers ...string) []*Parameter {
	return []*Parameter{
		New(Targets, KindStringList, "Targets to scan: IPs, CIDRs, ranges, hostnames or t:<id> references", nil).AsRequired(),
		New(Workers, KindInt, "Number of targets scanned concurrently", 100),
		New(Timeout, KindDuration, "Per-target timeout", 10*time.Second),
		New(ShowErrors, KindBool, "Print per-target errors to the console", false),
		New(ResultHeaders, KindStringList, "Result table headers", headers).AsAdvanced(),
		New(Info, KindString, "Scanner description", info).AsAdvanced(),
	}
}

// CredentialedScanner extends ScannerBase with the credential used to
// authenticate against each target.
func CredentialedScanner(info string, headers ...string) []*Parameter {
	return append(ScannerBase(info, headers...),
		New(Credential, KindInt, "Credential ID used for authentication", nil).AsRequired(),
		New(AuthType, KindString, "Authentication method", "NTLM"),
	)
}

// ClientSession returns the parameters of a protocol client session.
func ClientSession(protocol, authmethod string) []*Parameter {
	return []*Parameter{
		New(Protocol, KindString, "Client protocol", protocol).AsRequired(),
		New(AuthMethod, KindString, "Authentication method", authmethod),
		New(Credential, KindInt, "Credential ID", nil),
		New(Target, KindInt, "Target ID", nil).AsRequired(),
		New(Timeout, KindDuration, "Connection timeout", 5*time.Second),
	}
}
