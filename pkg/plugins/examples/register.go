package examples

import (
	"github.com/vulntor/console/pkg/plugin"
	"github.com/vulntor/console/pkg/scanners/examplescanner"
	"github.com/vulntor/console/pkg/session"
	"github.com/vulntor/console/pkg/utilities/exampleutil"
)

// RegisterScanner adds the EXAMPLESCANNER session type.
func RegisterScanner() plugin.Plugin {
	return &plugin.SessionRegisterPlugin{
		PluginName: "registerscanner",
		Desc:       "Register the EXAMPLESCANNER scanner type",
		Major:      session.Scanner,
		Minor:      examplescanner.TypeName,
		Factory:    examplescanner.New,
	}
}

// RegisterUtil adds the EXAMPLEUTIL utility type.
func RegisterUtil() plugin.Plugin {
	return &plugin.SessionRegisterPlugin{
		PluginName: "registerutil",
		Desc:       "Register the EXAMPLEUTIL utility type",
		Major:      session.Util,
		Minor:      exampleutil.TypeName,
		Factory:    exampleutil.New,
	}
}
