// Package catalog maps logical resource names onto Graph endpoints and the
// permissions each service needs. The tables drive diagnostics only; nothing
// here is enforced.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Endpoint is one logical resource.
type Endpoint struct {
	Name    string `yaml:"name"`
	Path    string `yaml:"path"`
	Service string `yaml:"service"`
	// TimeField is the timestamp property used for --since/--until filters.
	// Empty when the resource cannot be filtered by time.
	TimeField string `yaml:"time_field,omitempty"`
	// Delegated marks /me endpoints that only work with a signed-in user.
	Delegated bool `yaml:"delegated,omitempty"`
}

// Catalog is the resource table plus the required-permission table.
type Catalog struct {
	endpoints   map[string]Endpoint
	permissions map[string][]string
}

func (c *Catalog) Lookup(name string) (Endpoint, bool) {
	e, ok := c.endpoints[strings.TrimSpace(name)]
	return e, ok
}

// MustLookup is Lookup with an error naming the known resources.
func (c *Catalog) MustLookup(name string) (Endpoint, error) {
	e, ok := c.Lookup(name)
	if !ok {
		return Endpoint{}, fmt.Errorf("unknown resource %q (known: %s)", name, strings.Join(c.Names(), ", "))
	}
	return e, nil
}

// Names returns the resource names sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.endpoints))
	for n := range c.endpoints {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Endpoints returns every endpoint sorted by name.
func (c *Catalog) Endpoints() []Endpoint {
	out := make([]Endpoint, 0, len(c.endpoints))
	for _, n := range c.Names() {
		out = append(out, c.endpoints[n])
	}
	return out
}

// Services returns the service names of the permission table sorted.
func (c *Catalog) Services() []string {
	out := make([]string, 0, len(c.permissions))
	for s := range c.permissions {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ServicePermissions returns the scopes a service needs.
func (c *Catalog) ServicePermissions(service string) []string {
	return append([]string(nil), c.permissions[service]...)
}

// RequiredPermissions returns the scopes needed to read resource. Unknown
// resources return nil.
func (c *Catalog) RequiredPermissions(resource string) []string {
	e, ok := c.Lookup(resource)
	if !ok {
		return nil
	}
	return c.ServicePermissions(e.Service)
}

type file struct {
	Endpoints   []Endpoint          `yaml:"endpoints"`
	Permissions map[string][]string `yaml:"permissions"`
}

// LoadFile merges a YAML override into the catalog. Entries with an existing
// name replace the built-in one; permission lists replace per service.
func (c *Catalog) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read endpoints file: %w", err)
	}
	return c.Merge(raw)
}

// Merge applies a YAML document in the LoadFile format.
func (c *Catalog) Merge(raw []byte) error {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse endpoints file: %w", err)
	}

	for i, e := range f.Endpoints {
		if e.Name == "" || e.Path == "" {
			return fmt.Errorf("endpoint %d: name and path are required", i)
		}
		if e.Service == "" {
			e.Service = serviceFromName(e.Name)
		}
		c.endpoints[e.Name] = e
	}
	for svc, perms := range f.Permissions {
		c.permissions[svc] = append([]string(nil), perms...)
	}
	return nil
}

// serviceFromName derives "entra_id" from "entra_signins" and so on.
func serviceFromName(name string) string {
	prefix, _, _ := strings.Cut(name, "_")
	if prefix == "entra" {
		return "entra_id"
	}
	return prefix
}
