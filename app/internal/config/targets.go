package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"

	"infrastatus/app/internal/models"
)

// Targets is the monitored fleet plus the limits applied to it.
type Targets struct {
	Domains     []models.Domain         `yaml:"domains"`
	Servers     []models.Server         `yaml:"servers"`
	GameServers []models.GameServer     `yaml:"game_servers"`
	Hypervisor  models.HypervisorConfig `yaml:"proxmox"`
	Thresholds  models.Thresholds       `yaml:"thresholds"`
	NodeLimits  models.NodeLimits       `yaml:"node_limits"`
}

// DefaultTargets returns an empty fleet with default limits.
func DefaultTargets() Targets {
	return Targets{
		Hypervisor: models.HypervisorConfig{Port: 8006, Realm: "pam", TimeoutSeconds: 30},
		Thresholds: models.DefaultThresholds(),
		NodeLimits: models.DefaultNodeLimits(),
	}
}

// LoadTargets reads the YAML targets file. A missing file yields an empty
// fleet.
func LoadTargets(path string) (Targets, error) {
	t := DefaultTargets()
	if path == "" {
		return t, nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("targets file %s not found, monitoring nothing", path)
		return t, nil
	}
	if err != nil {
		return Targets{}, fmt.Errorf("read targets: %w", err)
	}
	if err := yaml.Unmarshal(content, &t); err != nil {
		return Targets{}, fmt.Errorf("parse targets: %w", err)
	}
	t.applyDefaults()
	return t, nil
}

func (t *Targets) applyDefaults() {
	for i := range t.Servers {
		if t.Servers[i].Type == "" {
			t.Servers[i].Type = models.ServerTypeExternal
		}
	}
	for i := range t.GameServers {
		if t.GameServers[i].Port == 0 {
			t.GameServers[i].Port = 25565
		}
	}
	if t.Hypervisor.Port == 0 {
		t.Hypervisor.Port = 8006
	}
	if t.Hypervisor.Realm == "" {
		t.Hypervisor.Realm = "pam"
	}
}

// Validate checks names, addresses and limits.
func (t Targets) Validate() error {
	seen := map[string]bool{}
	for i, d := range t.Domains {
		if d.Name == "" {
			return fmt.Errorf("domain %d is missing a name", i)
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate domain name %q", d.Name)
		}
		seen[d.Name] = true
		u, err := url.Parse(d.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("domain %s: invalid url %q", d.Name, d.URL)
		}
	}

	seen = map[string]bool{}
	for i, s := range t.Servers {
		if s.Name == "" {
			return fmt.Errorf("server %d is missing a name", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate server name %q", s.Name)
		}
		seen[s.Name] = true
		if err := checkAddr(s.Host, s.Port); err != nil {
			return fmt.Errorf("server %s: %w", s.Name, err)
		}
		if s.Type != models.ServerTypeExternal && s.Type != models.ServerTypeSystem {
			return fmt.Errorf("server %s: type must be external or system, got %q", s.Name, s.Type)
		}
	}

	seen = map[string]bool{}
	for i, g := range t.GameServers {
		if g.Name == "" {
			return fmt.Errorf("game server %d is missing a name", i)
		}
		if seen[g.Name] {
			return fmt.Errorf("duplicate game server name %q", g.Name)
		}
		seen[g.Name] = true
		if err := checkAddr(g.Host, g.Port); err != nil {
			return fmt.Errorf("game server %s: %w", g.Name, err)
		}
	}

	if h := t.Hypervisor; h.Enabled {
		if h.Host == "" || h.Username == "" {
			return errors.New("proxmox: host and username are required when enabled")
		}
		if h.Port < 1 || h.Port > 65535 {
			return fmt.Errorf("proxmox: invalid port %d", h.Port)
		}
	}

	th := t.Thresholds
	for _, p := range []struct {
		name           string
		warn, critical float64
	}{
		{"cpu", th.CPUWarning, th.CPUCritical},
		{"memory", th.MemoryWarning, th.MemoryCritical},
		{"disk", th.DiskWarning, th.DiskCritical},
		{"node", t.NodeLimits.Warning, t.NodeLimits.Critical},
	} {
		if p.warn > p.critical {
			return fmt.Errorf("%s warning threshold %.0f exceeds critical %.0f", p.name, p.warn, p.critical)
		}
	}
	return nil
}

func checkAddr(host string, port int) error {
	if host == "" {
		return errors.New("host is required")
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}
	return nil
}
