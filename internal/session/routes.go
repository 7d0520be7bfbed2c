package session

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Verdict is the outcome of a route admission check.
type Verdict int

const (
	Wait Verdict = iota
	Admit
	Redirect
)

func (v Verdict) String() string {
	switch v {
	case Wait:
		return "wait"
	case Admit:
		return "admit"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

// MarshalText renders the verdict name in JSON.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Decision is what the gate says about one path.
type Decision struct {
	Verdict  Verdict `json:"verdict"`
	Location string  `json:"location,omitempty"` // Set for Redirect
}

// RoutePolicy lists the paths anyone may open and where gated visitors go.
type RoutePolicy struct {
	Public   []string `yaml:"public"`
	Login    string   `yaml:"login"`
	Checkout string   `yaml:"checkout"`
}

// DefaultRoutePolicy is the site's built-in allow-list.
func DefaultRoutePolicy() RoutePolicy {
	return RoutePolicy{
		Public: []string{
			"/",
			"/login",
			"/verify-email",
			"/register",
			"/password-reset",
			"/password-reset-confirm",
			"/termsandconditions",
			"/privacy",
			"/calculators",
			"/blogs",
		},
		Login:    "/login",
		Checkout: "/checkout",
	}
}

// LoadRoutePolicy reads a YAML policy file. Omitted login/checkout keys
// keep their defaults; an omitted public list keeps the default list.
func LoadRoutePolicy(file string) (RoutePolicy, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return RoutePolicy{}, fmt.Errorf("reading route policy: %w", err)
	}

	policy := DefaultRoutePolicy()
	var loaded RoutePolicy
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return RoutePolicy{}, fmt.Errorf("parsing route policy: %w", err)
	}
	if loaded.Public != nil {
		policy.Public = loaded.Public
	}
	if loaded.Login != "" {
		policy.Login = loaded.Login
	}
	if loaded.Checkout != "" {
		policy.Checkout = loaded.Checkout
	}

	for i, p := range policy.Public {
		if !strings.HasPrefix(p, "/") {
			return RoutePolicy{}, fmt.Errorf("route policy: public path %q must start with /", p)
		}
		policy.Public[i] = cleanPath(p)
	}
	return policy, nil
}

func cleanPath(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// underPrefix matches prefix itself and anything below it, by path segment:
// /blogs matches /blogs/x but not /blogsx.
func underPrefix(p, prefix string) bool {
	if prefix == "/" {
		return p == "/"
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// IsPublic reports whether p is on the allow-list. "/" only matches itself.
func (rp RoutePolicy) IsPublic(p string) bool {
	p = cleanPath(p)
	for _, prefix := range rp.Public {
		if underPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// Decide applies the policy to one path in the given state.
func (rp RoutePolicy) Decide(state State, p string) Decision {
	if state == Loading {
		return Decision{Verdict: Wait}
	}
	if rp.IsPublic(p) {
		return Decision{Verdict: Admit}
	}

	switch state {
	case Anonymous:
		return Decision{Verdict: Redirect, Location: rp.Login}
	case AuthenticatedInactive:
		if underPrefix(cleanPath(p), rp.Checkout) {
			return Decision{Verdict: Admit}
		}
		return Decision{Verdict: Redirect, Location: rp.Checkout}
	}
	return Decision{Verdict: Admit}
}
