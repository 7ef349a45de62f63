package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/roblaszczak/go-cleanarch/cleanarch"
	"gopkg.in/yaml.v3"
)

type config struct {
	Version           int      `yaml:"version"`
	Root              string   `yaml:"root"`
	IgnoreTests       bool     `yaml:"ignore_tests"`
	IgnorePackages    []string `yaml:"ignore_packages"`
	SharedModules     []string `yaml:"shared_modules"`
	AllowedViolations []string `yaml:"allow_violations"`
	Aliases           struct {
		Domain         []string `yaml:"domain"`
		Application    []string `yaml:"application"`
		Interfaces     []string `yaml:"interfaces"`
		Infrastructure []string `yaml:"infrastructure"`
	} `yaml:"aliases"`
}

// cleanarchguard checks that module layers only import inward:
// presentation and handlers may use services, services may use domain,
// domain imports no other layer.
func main() {
	var (
		configPath = flag.String("config", ".milestones-layers.yml", "layer rules file")
		root       = flag.String("root", "", "directory to check; overrides the config root")
		debug      = flag.Bool("debug", false, "enable go-cleanarch debug logging")
	)
	flag.Parse()

	if *debug {
		cleanarch.Log.SetOutput(os.Stderr)
	}
	os.Exit(run(*configPath, *root, log.New(os.Stderr, "", 0)))
}

func run(configPath, rootOverride string, out *log.Logger) int {
	cfg, err := loadConfig(configPath)
	if err != nil {
		out.Printf("read config: %v", err)
		return 2
	}
	if rootOverride != "" {
		cfg.Root = rootOverride
	}
	root, err := resolveRoot(cfg.Root)
	if err != nil {
		out.Printf("resolve root: %v", err)
		return 2
	}

	ok, errs, err := cleanarch.NewValidator(layerAliases(cfg)).Validate(root, cfg.IgnoreTests, cfg.IgnorePackages)
	if err != nil {
		out.Printf("go-cleanarch: %v", err)
		return 2
	}

	filtered := filterValidationErrors(errs, cfg)
	if !ok && len(filtered) > 0 {
		for _, validationErr := range filtered {
			out.Println(validationErr.Error())
		}
		out.Printf("layering check failed: %d violation(s) under %s", len(filtered), root)
		return 1
	}
	out.Println("layering check passed")
	return 0
}

func layerAliases(cfg *config) map[string]cleanarch.Layer {
	aliases := map[string]cleanarch.Layer{}
	applyAliases(aliases, cfg.Aliases.Domain, defaultDomainAliases, cleanarch.LayerDomain)
	applyAliases(aliases, cfg.Aliases.Application, defaultApplicationAliases, cleanarch.LayerApplication)
	applyAliases(aliases, cfg.Aliases.Interfaces, defaultInterfacesAliases, cleanarch.LayerInterfaces)
	applyAliases(aliases, cfg.Aliases.Infrastructure, defaultInfrastructureAliases, cleanarch.LayerInfrastructure)
	return aliases
}

func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &config{Root: "modules", IgnoreTests: true}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if strings.TrimSpace(cfg.Root) == "" {
		cfg.Root = "."
	}
	return cfg, nil
}

func resolveRoot(root string) (string, error) {
	if root == "" {
		return "", errors.New("root must not be empty")
	}
	return filepath.Abs(root)
}

// Directory names of the milestones module layout.
var (
	defaultDomainAliases         = []string{"domain"}
	defaultApplicationAliases    = []string{"services"}
	defaultInterfacesAliases     = []string{"presentation", "handlers"}
	defaultInfrastructureAliases = []string{"infrastructure"}
)

func applyAliases(dst map[string]cleanarch.Layer, custom []string, defaults []string, layer cleanarch.Layer) {
	names := custom
	if len(names) == 0 {
		names = defaults
	}
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			dst[name] = layer
		}
	}
}

var crossModulePattern = regexp.MustCompile(`between ([\w-]+) and ([\w-]+) modules`)

// violationFilter drops reports about shared modules and explicitly allowed
// import paths.
type violationFilter struct {
	shared  map[string]bool
	allowed []string
}

func newViolationFilter(cfg *config) violationFilter {
	f := violationFilter{shared: map[string]bool{}}
	for _, m := range cfg.SharedModules {
		if m = strings.TrimSpace(m); m != "" {
			f.shared[m] = true
		}
	}
	for _, p := range cfg.AllowedViolations {
		if p != "" {
			f.allowed = append(f.allowed, p)
		}
	}
	return f
}

func (f violationFilter) allows(msg string) bool {
	if m := crossModulePattern.FindStringSubmatch(msg); len(m) == 3 && (f.shared[m[1]] || f.shared[m[2]]) {
		return true
	}
	for _, p := range f.allowed {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

func filterValidationErrors(errs []cleanarch.ValidationError, cfg *config) []cleanarch.ValidationError {
	f := newViolationFilter(cfg)
	var out []cleanarch.ValidationError
	for _, e := range errs {
		if !f.allows(e.Error()) {
			out = append(out, e)
		}
	}
	return out
}
