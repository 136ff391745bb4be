package config

import "fmt"

// Variable is a named value declared in an HCL config and referenced as
// vars.<name>. Secret variables take their value from the vars file only;
// a default would end up committed next to the config.
type Variable struct {
	Name    string `hcl:"name,label"`
	Default string `hcl:"default,optional"`
	Secret  bool   `hcl:"secret,optional"`
}

func (v *Variable) Validate() error {
	if v.Secret && v.Default != "" {
		return fmt.Errorf("secret variable %q must not carry a default value", v.Name)
	}
	return nil
}
