package options

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

var _ IOptions = (*PolicyOptions)(nil)

// PolicyOptions holds the static application permission table.
type PolicyOptions struct {
	// DefaultAllow is the verdict for applications without an explicit rule.
	DefaultAllow bool `json:"default-allow" mapstructure:"default-allow"`

	// Rules maps an application ID to a comma separated list of permitted
	// module types, or "*" for every module. An empty list denies everything.
	Rules map[string]string `json:"rules" mapstructure:"rules"`
}

// NewPolicyOptions creates a PolicyOptions object with default parameters.
func NewPolicyOptions() *PolicyOptions {
	return &PolicyOptions{
		DefaultAllow: true,
		Rules:        map[string]string{},
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *PolicyOptions) Validate() []error {
	var errs []error

	for app, modules := range o.Rules {
		if app == "" {
			errs = append(errs, fmt.Errorf("policy.rules: empty application id"))
		}
		for _, m := range SplitModules(modules) {
			if m != "*" && !KnownModules.Has(m) {
				errs = append(errs, fmt.Errorf("policy.rules[%s]: unknown module type %q", app, m))
			}
		}
	}

	return errs
}

// AddFlags adds flags related to the permission table to the specified FlagSet.
func (o *PolicyOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.BoolVar(&o.DefaultAllow, flagName("policy", "default-allow", prefixes...), o.DefaultAllow,
		"Permit applications that have no explicit rule.")
	fs.StringToStringVar(&o.Rules, flagName("policy", "rules", prefixes...), o.Rules,
		"Per application module permissions, e.g. app-1=RADIO;CLIMATE,app-2=*.")
}

// SplitModules parses a rule value. Both ',' and ';' separate modules so rules
// survive the comma splitting done by the flag parser.
func SplitModules(v string) []string {
	fields := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.ToUpper(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}
