package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// LoadHCL reads an HCL config file. Loading is staged: variable blocks are
// decoded first and exposed as vars.* to every other expression, so api
// keys and option lists can reference the vars file without appearing in
// the config itself.
func LoadHCL(path string) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %w", path, diags)
	}

	content, _, diags := hclFile.Body.PartialContent(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "task_description"},
			{Name: "call_example"},
			{Name: "max_examples"},
			{Name: "target_findings"},
			{Name: "timeout_seconds"},
			{Name: "execution_timeout_seconds"},
			{Name: "inconsistency_threshold"},
			{Name: "output_file"},
			{Name: "verbose"},
			{Name: "live_port"},
		},
		Blocks: []hcl.BlockHeaderSchema{
			{Type: "variable", LabelNames: []string{"name"}},
			{Type: "parameter", LabelNames: []string{"name"}},
			{Type: "preferences"},
			{Type: "llm"},
			{Type: "storage"},
		},
	})
	if diags.HasErrors() {
		return nil, fmt.Errorf("read %s: %w", path, diags)
	}

	// Stage 1: variables, evaluated without context.
	var allVars []Variable
	for _, block := range content.Blocks {
		if block.Type != "variable" {
			continue
		}
		v, err := parseVariableBlock(block)
		if err != nil {
			return nil, err
		}
		allVars = append(allVars, *v)
	}
	ctx := buildVarsContext(allVars)

	// Stage 2: everything else, with vars.* available.
	cfg := newDefaultConfig()
	targetSet := false

	for name, attr := range content.Attributes {
		val, diags := attr.Expr.Value(ctx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("attribute %s: %w", name, diags)
		}
		switch name {
		case "task_description":
			cfg.TaskDescription = val.AsString()
		case "call_example":
			cfg.CallExample = val.AsString()
		case "max_examples":
			cfg.MaxExamples = ctyInt(val)
		case "target_findings":
			cfg.TargetFindings = ctyInt(val)
			targetSet = true
		case "timeout_seconds":
			cfg.TimeoutSeconds = ctyInt(val)
		case "execution_timeout_seconds":
			cfg.ExecutionTimeoutSeconds = ctyInt(val)
		case "inconsistency_threshold":
			cfg.InconsistencyThreshold = ctyFloat(val)
		case "output_file":
			cfg.OutputFile = val.AsString()
		case "verbose":
			cfg.Verbose = val.True()
		case "live_port":
			cfg.LivePort = ctyInt(val)
		}
	}
	if !targetSet {
		cfg.TargetFindings = cfg.MaxExamples
	}

	for _, block := range content.Blocks {
		switch block.Type {
		case "parameter":
			p, err := parseParameterBlock(block, ctx)
			if err != nil {
				return nil, err
			}
			cfg.Parameters = append(cfg.Parameters, *p)
		case "preferences":
			if err := parsePreferencesBlock(block, ctx, &cfg.Preferences); err != nil {
				return nil, err
			}
		case "llm":
			if err := parseLLMBlock(block, ctx, &cfg.LLM); err != nil {
				return nil, err
			}
		case "storage":
			if err := parseStorageBlock(block, ctx, &cfg.Storage); err != nil {
				return nil, err
			}
		}
	}

	if err := cfg.resolvePaths(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseVariableBlock(block *hcl.Block) (*Variable, error) {
	v := Variable{Name: block.Labels[0]}

	vc, _, diags := block.Body.PartialContent(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "default"},
			{Name: "secret"},
		},
	})
	if diags.HasErrors() {
		return nil, fmt.Errorf("variable '%s': %w", v.Name, diags)
	}

	if attr, ok := vc.Attributes["default"]; ok {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("variable '%s': %w", v.Name, diags)
		}
		v.Default = val.AsString()
	}
	if attr, ok := vc.Attributes["secret"]; ok {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("variable '%s': %w", v.Name, diags)
		}
		v.Secret = val.True()
	}

	if err := v.Validate(); err != nil {
		return nil, err
	}
	return &v, nil
}

// buildVarsContext resolves declared variables against the vars file,
// falling back to config defaults, and exposes them as vars.*.
func buildVarsContext(vars []Variable) *hcl.EvalContext {
	varsMap := make(map[string]cty.Value)
	fileVars, _ := LoadVarsFromFile()
	for _, v := range vars {
		if val, ok := fileVars[v.Name]; ok {
			varsMap[v.Name] = cty.StringVal(val)
		} else {
			varsMap[v.Name] = cty.StringVal(v.Default)
		}
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"vars": cty.ObjectVal(varsMap),
		},
	}
}

func parseParameterBlock(block *hcl.Block, ctx *hcl.EvalContext) (*ParameterSpec, error) {
	name := block.Labels[0]

	pc, _, diags := block.Body.PartialContent(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "description"},
			{Name: "options", Required: true},
			{Name: "default"},
		},
	})
	if diags.HasErrors() {
		return nil, fmt.Errorf("parameter '%s': %w", name, diags)
	}

	spec := &ParameterSpec{Name: name}

	if attr, ok := pc.Attributes["description"]; ok {
		val, diags := attr.Expr.Value(ctx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parameter '%s': %w", name, diags)
		}
		spec.Description = val.AsString()
	}

	optsVal, diags := pc.Attributes["options"].Expr.Value(ctx)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parameter '%s': %w", name, diags)
	}
	if !optsVal.CanIterateElements() {
		return nil, fmt.Errorf("parameter '%s': options must be a list", name)
	}
	for it := optsVal.ElementIterator(); it.Next(); {
		_, v := it.Element()
		spec.Options = append(spec.Options, ctyToGo(v))
	}

	if attr, ok := pc.Attributes["default"]; ok {
		val, diags := attr.Expr.Value(ctx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("parameter '%s': %w", name, diags)
		}
		spec.Default = ctyToGo(val)
	}

	return spec, nil
}

func parsePreferencesBlock(block *hcl.Block, ctx *hcl.EvalContext, prefs *Preferences) error {
	pc, _, diags := block.Body.PartialContent(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "diversity_focus"},
			{Name: "complexity_level"},
			{Name: "domain_specific_hints"},
			{Name: "edge_cases"},
			{Name: "custom_instructions"},
		},
	})
	if diags.HasErrors() {
		return fmt.Errorf("preferences: %w", diags)
	}

	for name, attr := range pc.Attributes {
		val, diags := attr.Expr.Value(ctx)
		if diags.HasErrors() {
			return fmt.Errorf("preferences %s: %w", name, diags)
		}
		switch name {
		case "diversity_focus":
			prefs.DiversityFocus = val.AsString()
		case "complexity_level":
			prefs.ComplexityLevel = val.AsString()
		case "domain_specific_hints":
			prefs.DomainSpecificHints = nil
			for it := val.ElementIterator(); it.Next(); {
				_, v := it.Element()
				prefs.DomainSpecificHints = append(prefs.DomainSpecificHints, v.AsString())
			}
		case "edge_cases":
			prefs.EdgeCases = val.True()
		case "custom_instructions":
			prefs.CustomInstructions = val.AsString()
		}
	}
	return nil
}

func parseLLMBlock(block *hcl.Block, ctx *hcl.EvalContext, llm *LLM) error {
	lc, _, diags := block.Body.PartialContent(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "provider"},
			{Name: "model"},
			{Name: "api_key"},
			{Name: "temperature"},
		},
	})
	if diags.HasErrors() {
		return fmt.Errorf("llm: %w", diags)
	}

	for name, attr := range lc.Attributes {
		val, diags := attr.Expr.Value(ctx)
		if diags.HasErrors() {
			return fmt.Errorf("llm %s: %w", name, diags)
		}
		switch name {
		case "provider":
			llm.Provider = Provider(strings.ToLower(val.AsString()))
		case "model":
			llm.Model = val.AsString()
		case "api_key":
			llm.APIKey = val.AsString()
		case "temperature":
			llm.Temperature = ctyFloat(val)
		}
	}
	return nil
}

func parseStorageBlock(block *hcl.Block, ctx *hcl.EvalContext, st *Storage) error {
	sc, _, diags := block.Body.PartialContent(&hcl.BodySchema{
		Attributes: []hcl.AttributeSchema{
			{Name: "backend"},
			{Name: "path"},
		},
	})
	if diags.HasErrors() {
		return fmt.Errorf("storage: %w", diags)
	}

	for name, attr := range sc.Attributes {
		val, diags := attr.Expr.Value(ctx)
		if diags.HasErrors() {
			return fmt.Errorf("storage %s: %w", name, diags)
		}
		switch name {
		case "backend":
			st.Backend = val.AsString()
		case "path":
			st.Path = val.AsString()
		}
	}
	return nil
}

// ctyToGo converts an HCL value to the plain Go value used in parameter
// grids, matching what the JSON decoder would produce.
func ctyToGo(v cty.Value) any {
	switch {
	case v.IsNull():
		return nil
	case v.Type() == cty.String:
		return v.AsString()
	case v.Type() == cty.Bool:
		return v.True()
	case v.Type() == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			i, _ := bf.Int64()
			return float64(i)
		}
		f, _ := bf.Float64()
		return f
	case v.CanIterateElements():
		var out []any
		for it := v.ElementIterator(); it.Next(); {
			_, el := it.Element()
			out = append(out, ctyToGo(el))
		}
		return out
	default:
		return v.GoString()
	}
}

func ctyInt(v cty.Value) int {
	bf := v.AsBigFloat()
	i, _ := bf.Int64()
	return int(i)
}

func ctyFloat(v cty.Value) float64 {
	f, _ := v.AsBigFloat().Float64()
	return f
}
