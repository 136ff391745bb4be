package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Defaults applied when a field is absent from the config file.
const (
	DefaultMaxExamples            = 5
	DefaultTimeoutSeconds         = 300
	DefaultExecutionTimeoutSecs   = 60
	DefaultInconsistencyThreshold = 0.3
	DefaultOutputFile             = "comparison_results.json"
	DefaultProvider               = ProviderOpenAI
	DefaultModel                  = "gpt-4"
	DefaultStorageBackend         = "memory"
	DefaultDiversityFocus         = "high"
	DefaultComplexityLevel        = "medium"
)

// Config holds everything a comparison run needs.
type Config struct {
	TaskDescription string
	CallExample     string
	Parameters      []ParameterSpec

	Preferences Preferences

	// MaxExamples caps the number of iterations. TargetFindings is the
	// number of significant findings that ends the run early; it defaults
	// to MaxExamples.
	MaxExamples    int
	TargetFindings int

	// TimeoutSeconds bounds the whole run; ExecutionTimeoutSeconds bounds
	// a single sandboxed execution.
	TimeoutSeconds          int
	ExecutionTimeoutSeconds int

	InconsistencyThreshold float64

	LLM     LLM
	Storage Storage

	OutputFile string
	Verbose    bool

	// LivePort, when >0, serves live progress events over websocket.
	LivePort int
}

// LLM identifies the hosted model used for input generation, optional code
// synthesis, and judgment.
type LLM struct {
	Provider    Provider
	Model       string
	APIKey      string
	Temperature float64
}

// Storage selects the run-history backend.
type Storage struct {
	Backend string // memory or sqlite
	Path    string
}

// ValidationError reports a config file that parsed but cannot drive a run.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Load reads a config file, dispatching on extension. JSON is the primary
// format; .hcl files decode into the same Config.
func Load(path string) (*Config, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hcl":
		return LoadHCL(path)
	default:
		return LoadJSON(path)
	}
}

// LoadAndValidate loads the config and validates it.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// jsonConfig mirrors the on-disk JSON layout. Pointers distinguish absent
// fields from zero values so defaults apply cleanly.
type jsonConfig struct {
	TaskDescription string          `json:"task_description"`
	CallExample     string          `json:"call_example"`
	Parameters      []jsonParameter `json:"parameters"`

	InputExamplePreferences *jsonPreferences `json:"input_example_preferences"`

	MaxExamples             *int     `json:"max_examples"`
	TargetFindings          *int     `json:"target_findings"`
	TimeoutSeconds          *int     `json:"timeout_seconds"`
	ExecutionTimeoutSeconds *int     `json:"execution_timeout_seconds"`
	InconsistencyThreshold  *float64 `json:"inconsistency_threshold"`

	LLMProvider    string   `json:"llm_provider"`
	LLMModel       string   `json:"llm_model"`
	LLMAPIKey      string   `json:"llm_api_key"`
	LLMTemperature *float64 `json:"llm_temperature"`

	Storage *jsonStorage `json:"storage"`

	OutputFile string `json:"output_file"`
	Verbose    *bool  `json:"verbose"`
	LivePort   int    `json:"live_port"`
}

type jsonParameter struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Options     []any  `json:"options"`
	Default     any    `json:"default"`
}

type jsonPreferences struct {
	DiversityFocus      string   `json:"diversity_focus"`
	ComplexityLevel     string   `json:"complexity_level"`
	DomainSpecificHints []string `json:"domain_specific_hints"`
	EdgeCases           *bool    `json:"edge_cases"`
	CustomInstructions  string   `json:"custom_instructions"`
}

type jsonStorage struct {
	Backend string `json:"backend"`
	Path    string `json:"path"`
}

// LoadJSON reads a JSON config file. Relative paths inside the file
// (call_example file, output_file, storage path) resolve against the
// config file's directory.
func LoadJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := newDefaultConfig()
	cfg.TaskDescription = jc.TaskDescription
	cfg.CallExample = jc.CallExample

	for _, p := range jc.Parameters {
		cfg.Parameters = append(cfg.Parameters, ParameterSpec{
			Name:        p.Name,
			Description: p.Description,
			Options:     p.Options,
			Default:     p.Default,
		})
	}

	if prefs := jc.InputExamplePreferences; prefs != nil {
		if prefs.DiversityFocus != "" {
			cfg.Preferences.DiversityFocus = prefs.DiversityFocus
		}
		if prefs.ComplexityLevel != "" {
			cfg.Preferences.ComplexityLevel = prefs.ComplexityLevel
		}
		cfg.Preferences.DomainSpecificHints = prefs.DomainSpecificHints
		if prefs.EdgeCases != nil {
			cfg.Preferences.EdgeCases = *prefs.EdgeCases
		}
		cfg.Preferences.CustomInstructions = prefs.CustomInstructions
	}

	if jc.MaxExamples != nil {
		cfg.MaxExamples = *jc.MaxExamples
	}
	if jc.TargetFindings != nil {
		cfg.TargetFindings = *jc.TargetFindings
	} else {
		cfg.TargetFindings = cfg.MaxExamples
	}
	if jc.TimeoutSeconds != nil {
		cfg.TimeoutSeconds = *jc.TimeoutSeconds
	}
	if jc.ExecutionTimeoutSeconds != nil {
		cfg.ExecutionTimeoutSeconds = *jc.ExecutionTimeoutSeconds
	}
	if jc.InconsistencyThreshold != nil {
		cfg.InconsistencyThreshold = *jc.InconsistencyThreshold
	}

	if jc.LLMProvider != "" {
		cfg.LLM.Provider = Provider(strings.ToLower(jc.LLMProvider))
	}
	if jc.LLMModel != "" {
		cfg.LLM.Model = jc.LLMModel
	}
	cfg.LLM.APIKey = jc.LLMAPIKey
	if jc.LLMTemperature != nil {
		cfg.LLM.Temperature = *jc.LLMTemperature
	}

	if jc.Storage != nil {
		if jc.Storage.Backend != "" {
			cfg.Storage.Backend = jc.Storage.Backend
		}
		cfg.Storage.Path = jc.Storage.Path
	}

	if jc.OutputFile != "" {
		cfg.OutputFile = jc.OutputFile
	}
	if jc.Verbose != nil {
		cfg.Verbose = *jc.Verbose
	}
	cfg.LivePort = jc.LivePort

	if err := cfg.resolvePaths(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newDefaultConfig() *Config {
	return &Config{
		Preferences: Preferences{
			DiversityFocus:  DefaultDiversityFocus,
			ComplexityLevel: DefaultComplexityLevel,
			EdgeCases:       true,
		},
		MaxExamples:             DefaultMaxExamples,
		TargetFindings:          DefaultMaxExamples,
		TimeoutSeconds:          DefaultTimeoutSeconds,
		ExecutionTimeoutSeconds: DefaultExecutionTimeoutSecs,
		InconsistencyThreshold:  DefaultInconsistencyThreshold,
		LLM: LLM{
			Provider: DefaultProvider,
			Model:    DefaultModel,
		},
		Storage:    Storage{Backend: DefaultStorageBackend},
		OutputFile: DefaultOutputFile,
		Verbose:    true,
	}
}

// resolvePaths anchors relative paths to the config file's directory and
// inlines a call_example that points at a snippet file.
func (c *Config) resolvePaths(dir string) error {
	if isSnippetPath(c.CallExample) {
		path := c.CallExample
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("call example file %s: %w", path, err)
		}
		c.CallExample = string(data)
	}

	if c.OutputFile != "" && !filepath.IsAbs(c.OutputFile) {
		c.OutputFile = filepath.Join(dir, c.OutputFile)
	}
	if c.Storage.Path != "" && !filepath.IsAbs(c.Storage.Path) {
		c.Storage.Path = filepath.Join(dir, c.Storage.Path)
	}
	return nil
}

// isSnippetPath reports whether a call_example value names a file rather
// than holding inline code.
func isSnippetPath(s string) bool {
	if strings.ContainsAny(s, "\n") {
		return false
	}
	return strings.HasSuffix(s, ".go") || strings.HasSuffix(s, ".go.tmpl") || strings.HasSuffix(s, ".tmpl")
}

// Validate checks that the config can drive a run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.TaskDescription) == "" {
		return &ValidationError{Field: "task_description", Reason: "required"}
	}
	if strings.TrimSpace(c.CallExample) == "" {
		return &ValidationError{Field: "call_example", Reason: "required"}
	}
	if len(c.Parameters) == 0 {
		return &ValidationError{Field: "parameters", Reason: "at least one parameter is required"}
	}

	seen := make(map[string]bool)
	for _, p := range c.Parameters {
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return &ValidationError{Field: "parameters", Reason: fmt.Sprintf("duplicate parameter name '%s'", p.Name)}
		}
		seen[p.Name] = true
	}

	if c.MaxExamples <= 0 {
		return &ValidationError{Field: "max_examples", Reason: "must be positive"}
	}
	if c.TargetFindings <= 0 {
		return &ValidationError{Field: "target_findings", Reason: "must be positive"}
	}
	if c.TimeoutSeconds < 0 {
		return &ValidationError{Field: "timeout_seconds", Reason: "must not be negative"}
	}
	if c.ExecutionTimeoutSeconds <= 0 {
		return &ValidationError{Field: "execution_timeout_seconds", Reason: "must be positive"}
	}
	if c.InconsistencyThreshold < 0 || c.InconsistencyThreshold > 1 {
		return &ValidationError{Field: "inconsistency_threshold", Reason: "must be in [0, 1]"}
	}

	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
	default:
		return &ValidationError{Field: "llm_provider", Reason: fmt.Sprintf("unsupported provider '%s'", c.LLM.Provider)}
	}

	switch c.Storage.Backend {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return &ValidationError{Field: "storage.path", Reason: "required for sqlite backend"}
		}
	default:
		return &ValidationError{Field: "storage.backend", Reason: fmt.Sprintf("unsupported backend '%s'", c.Storage.Backend)}
	}

	return nil
}

// ResolveAPIKey fills LLM.APIKey from the first available source:
// the flag value, the config file, the provider's environment variable,
// then the vars file entry <provider>_api_key.
func (c *Config) ResolveAPIKey(flagKey string) error {
	if flagKey != "" {
		c.LLM.APIKey = flagKey
		return nil
	}
	if c.LLM.APIKey != "" && c.LLM.APIKey != "YOUR_API_KEY_HERE" {
		return nil
	}

	if key := os.Getenv(c.LLM.Provider.EnvVar()); key != "" {
		c.LLM.APIKey = key
		return nil
	}

	if key, err := GetVar(string(c.LLM.Provider) + "_api_key"); err == nil && key != "" {
		c.LLM.APIKey = key
		return nil
	}

	return fmt.Errorf("no API key found for %s: set %s, use --api-key, or add %s_api_key to the vars file",
		c.LLM.Provider, c.LLM.Provider.EnvVar(), c.LLM.Provider)
}

// ToJSON renders the config in the on-disk JSON layout, used when embedding
// the configuration into the final report.
func (c *Config) ToJSON() map[string]any {
	params := make([]any, 0, len(c.Parameters))
	for _, p := range c.Parameters {
		params = append(params, map[string]any{
			"name":        p.Name,
			"description": p.Description,
			"options":     p.Options,
			"default":     p.Default,
		})
	}

	return map[string]any{
		"task_description": c.TaskDescription,
		"call_example":     c.CallExample,
		"parameters":       params,
		"input_example_preferences": map[string]any{
			"diversity_focus":       c.Preferences.DiversityFocus,
			"complexity_level":      c.Preferences.ComplexityLevel,
			"domain_specific_hints": c.Preferences.DomainSpecificHints,
			"edge_cases":            c.Preferences.EdgeCases,
			"custom_instructions":   c.Preferences.CustomInstructions,
		},
		"max_examples":              c.MaxExamples,
		"target_findings":           c.TargetFindings,
		"timeout_seconds":           c.TimeoutSeconds,
		"execution_timeout_seconds": c.ExecutionTimeoutSeconds,
		"inconsistency_threshold":   c.InconsistencyThreshold,
		"llm_provider":              string(c.LLM.Provider),
		"llm_model":                 c.LLM.Model,
		"llm_temperature":           c.LLM.Temperature,
		"output_file":               c.OutputFile,
		"verbose":                   c.Verbose,
	}
}
