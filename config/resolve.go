package config

import "os"

// LookupFunc reads an environment variable
type LookupFunc func(key string) (string, bool)

// SourceKind identifies which strategy produced a value
type SourceKind int

const (
	FromOverride SourceKind = iota + 1
	FromOption
	FromEnv
	FromDefault
)

func (k SourceKind) String() string {
	switch k {
	case FromOverride:
		return "override"
	case FromOption:
		return "option"
	case FromEnv:
		return "env"
	case FromDefault:
		return "default"
	}
	return "unknown"
}

// Source is one strategy in a resolution chain. Key is the option or
// environment variable name for FromOption and FromEnv sources.
type Source struct {
	Kind   SourceKind
	Key    string
	Lookup func() (string, bool)
}

// Name is a printable label such as "env:NOVITA_API_KEY"
func (s Source) Name() string {
	if s.Key == "" {
		return s.Kind.String()
	}
	return s.Kind.String() + ":" + s.Key
}

// Override resolves to v when it is non-empty
func Override(v string) Source {
	return Source{
		Kind: FromOverride,
		Lookup: func() (string, bool) {
			return v, v != ""
		},
	}
}

// OverridePtr resolves to *v when v is set, even to the empty string
func OverridePtr(v *string) Source {
	return Source{
		Kind: FromOverride,
		Lookup: func() (string, bool) {
			if v == nil {
				return "", false
			}
			return *v, true
		},
	}
}

// Option resolves to the named configuration option
func Option(cfg Config, key string) Source {
	return Source{
		Kind: FromOption,
		Key:  key,
		Lookup: func() (string, bool) {
			return cfg.Value(key)
		},
	}
}

// Env resolves to a non-empty environment variable. A nil lookup uses
// os.LookupEnv.
func Env(lookup LookupFunc, name string) Source {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return Source{
		Kind: FromEnv,
		Key:  name,
		Lookup: func() (string, bool) {
			v, ok := lookup(name)
			return v, ok && v != ""
		},
	}
}

// Default always resolves to v
func Default(v string) Source {
	return Source{
		Kind: FromDefault,
		Lookup: func() (string, bool) {
			return v, true
		},
	}
}

// Resolver tries its sources in order; the first hit wins
type Resolver []Source

// Resolve returns the resolved value and the source that provided it. ok is
// false when no source matched.
func (r Resolver) Resolve() (value string, from Source, ok bool) {
	for _, src := range r {
		if v, ok := src.Lookup(); ok {
			return v, src, true
		}
	}
	return "", Source{}, false
}

// MapLookup serves environment lookups from a map
func MapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}
