package local

import (
	"github.com/chenyanchen/modrun"
)

// ProviderName is the name the local provider registers under in modrun.DefaultRegistry.
const ProviderName = "local"

var (
	_ modrun.Container = (*Container)(nil)
	_ modrun.Module    = (*Module)(nil)
)

func init() {
	modrun.MustRegister(ProviderName, NewProvider())
}

// NewProvider returns a provider building local containers with opts.
func NewProvider(opts ...Option) modrun.Provider {
	return modrun.ProviderFunc(func(props modrun.Properties) (modrun.Container, error) {
		return New(props, opts...), nil
	})
}
