// Package redact strips sensitive material from error text before it is
// logged or stored. Report job failures are persisted verbatim into the
// job's error message and later shown to the job's owner, so anything a
// data access or storage error might carry (connection strings, SQL,
// file paths, hosts) must be scrubbed first.
package redact

import "regexp"

// Placeholders substituted for matched sensitive fragments.
const (
	PathPlaceholder       = "[REDACTED_PATH]"
	CredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	SQLPlaceholder        = "[REDACTED_SQL]"
	HostPlaceholder       = "[REDACTED_HOST]"
	TokenPlaceholder      = "[REDACTED_TOKEN]"
)

// rule pairs a pattern with its placeholder. Order matters: connection
// strings must be scrubbed before the bare host pattern sees them.
type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

var rules = []rule{
	// Database connection URLs with embedded credentials.
	{regexp.MustCompile(`(?i)(postgres|postgresql|mysql)://[^@\s]+@[^\s]+`), CredentialPlaceholder},

	// Password and secret assignments.
	{regexp.MustCompile(`(?i)(password|passwd|secret|jwt_secret)([=:\s]['"]?)[^'"&\s]{3,}`), CredentialPlaceholder},

	// Bearer tokens in the standard three-part JWT shape.
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), TokenPlaceholder},

	// SQL statement fragments leaked from driver errors.
	{regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE)[\s\w,*()]+(FROM|INTO|SET)[\s\w,*()='"$.]*`), SQLPlaceholder},

	// Filesystem paths, including the result directory.
	{regexp.MustCompile(`(/[\w.-]+){2,}`), PathPlaceholder},

	// host:port endpoints from dial errors.
	{regexp.MustCompile(`\b[a-zA-Z0-9][a-zA-Z0-9.-]*\.[a-zA-Z]{2,}:\d{1,5}\b`), HostPlaceholder},
}

// String scrubs sensitive fragments from the input.
func String(input string) string {
	if input == "" {
		return input
	}
	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.placeholder)
	}
	return result
}

// Error scrubs an error's message, tolerating nil.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
