package guard

import (
	"io"
	"os"
	"path"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Capability is what a visitor needs to open a route.
type Capability string

const (
	Public        Capability = "public"
	Guest         Capability = "guest" // login/signup: only while signed out
	Authenticated Capability = "authenticated"
	Admin         Capability = "admin"
)

func (c Capability) valid() bool {
	switch c {
	case Public, Guest, Authenticated, Admin:
		return true
	}
	return false
}

// Rule binds a route pattern to a capability.
// A pattern is either an exact path ("/earn") or a subtree ("/admin/*", which also matches "/admin").
type Rule struct {
	Pattern    string     `yaml:"pattern"`
	Capability Capability `yaml:"capability"`
}

// Table is evaluated top to bottom; the first matching rule wins.
// Paths matching no rule require Authenticated.
type Table []Rule

// DefaultTable is the route table of the web client.
func DefaultTable() Table {
	return Table{
		{Pattern: "/", Capability: Public},
		{Pattern: "/healthz", Capability: Public},
		{Pattern: "/donate", Capability: Public},
		{Pattern: "/logout", Capability: Public},
		{Pattern: "/login", Capability: Guest},
		{Pattern: "/signup", Capability: Guest},
		{Pattern: "/register", Capability: Guest},
		{Pattern: "/admin/*", Capability: Admin},
		{Pattern: "/home", Capability: Authenticated},
		{Pattern: "/earn/*", Capability: Authenticated},
		{Pattern: "/submit", Capability: Authenticated},
	}
}

type tableFile struct {
	Rules Table `yaml:"rules"`
}

// LoadTable decodes a YAML route table:
//
//	rules:
//	  - pattern: /admin/*
//	    capability: admin
func LoadTable(r io.Reader) (Table, error) {
	var f tableFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decoding route table")
	}
	if err := f.Rules.Validate(); err != nil {
		return nil, err
	}
	return f.Rules, nil
}

func LoadTableFile(name string) (Table, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrap(err, "opening route table")
	}
	defer f.Close()
	return LoadTable(f)
}

func (t Table) Validate() error {
	if len(t) == 0 {
		return errors.New("route table is empty")
	}
	for i, r := range t {
		if !strings.HasPrefix(r.Pattern, "/") {
			return errors.Errorf("rule %d: pattern %q must start with /", i, r.Pattern)
		}
		if !r.Capability.valid() {
			return errors.Errorf("rule %d: unknown capability %q", i, r.Capability)
		}
	}
	return nil
}

// Match returns the capability required by p.
func (t Table) Match(p string) Capability {
	p = cleanPath(p)
	for _, r := range t {
		if matches(r.Pattern, p) {
			return r.Capability
		}
	}
	return Authenticated
}

func matches(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return p == prefix || strings.HasPrefix(p, prefix+"/")
	}
	return cleanPath(pattern) == p
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}
