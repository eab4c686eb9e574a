package config

import "slices"

// InputType describes how an option is presented and stored
type InputType string

const (
	Dropdown InputType = "dropdown"
	Password InputType = "password"
	Text     InputType = "text"
)

// InputConfig is a single configurable option
type InputConfig struct {
	Type        InputType `json:"type"`
	Value       string    `json:"value"`
	Description string    `json:"description"`
	Values      []string  `json:"values"`
}

// Allows reports whether value is acceptable for the option. Only dropdowns
// restrict their values.
func (c InputConfig) Allows(value string) bool {
	if c.Type != Dropdown || len(c.Values) == 0 {
		return true
	}
	return slices.Contains(c.Values, value)
}

// Config maps option names to their settings
type Config map[string]InputConfig

// Value returns the option's value and whether it is set to something non-empty
func (c Config) Value(key string) (string, bool) {
	opt, ok := c[key]
	if !ok || opt.Value == "" {
		return "", false
	}
	return opt.Value, true
}

// Clone returns a copy that can be modified without touching c
func (c Config) Clone() Config {
	out := make(Config, len(c))
	for k, v := range c {
		v.Values = slices.Clone(v.Values)
		out[k] = v
	}
	return out
}

// Merge returns a copy of c with the options of override layered on top
func (c Config) Merge(override Config) Config {
	out := c.Clone()
	for k, v := range override {
		out[k] = v
	}
	return out
}
