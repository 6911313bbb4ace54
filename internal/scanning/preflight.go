package scanning

import (
	"net"
	"os/exec"
	"regexp"
	"strings"

	"github.com/clivendon/RAD/internal/errors"
)

// hostnameRe accepts RFC 1123 host names: dot-separated labels of letters,
// digits and hyphens, not starting or ending with a hyphen.
var hostnameRe = regexp.MustCompile(
	`^([a-zA-Z0-9]|[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9])` +
		`(\.([a-zA-Z0-9]|[a-zA-Z0-9][a-zA-Z0-9-]{0,61}[a-zA-Z0-9]))*$`)

const maxHostnameLen = 253

// ValidateTarget checks that the target is an IP address or a plausible
// host name before anything is launched against it.
func ValidateTarget(target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return errors.ErrInvalidTarget(target)
	}
	if net.ParseIP(target) != nil {
		return nil
	}
	if len(target) <= maxHostnameLen && hostnameRe.MatchString(target) {
		return nil
	}
	return errors.ErrInvalidTarget(target)
}

// RequiredTools are the external programs the pipeline shells out to.
var RequiredTools = []string{"nmap", "feroxbuster"}

// CheckTools verifies every required external tool is on PATH. The names
// default to RequiredTools; explicit binaries from configuration may be
// passed instead.
func CheckTools(tools ...string) error {
	if len(tools) == 0 {
		tools = RequiredTools
	}
	for _, tool := range tools {
		if _, err := exec.LookPath(tool); err != nil {
			return errors.ErrToolMissing(tool)
		}
	}
	return nil
}
