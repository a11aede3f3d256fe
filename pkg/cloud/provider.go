package cloud

import (
	"context"
	"sort"
)

// Provider is implemented by cloud providers capable of returning the raw
// metadata of the instance the process is running on. The returned map keeps
// the provider's own key spelling; Collect normalizes it.
type Provider interface {
	InstanceMetadata(ctx context.Context) (map[string]any, error)
}

// ProviderFactory creates a new Provider instance.
type ProviderFactory func() Provider

// Provider names used by the detector, the render step and callers.
const (
	ProviderAWS  = "aws"
	ProviderGCE  = "gce"
	ProviderNone = "none"
)

var providerRegistry = map[string]ProviderFactory{}

// RegisterProvider registers a provider factory under the given name.
// It is typically called from init() functions in provider-specific files.
func RegisterProvider(name string, factory ProviderFactory) {
	providerRegistry[name] = factory
}

// LookupProvider returns a Provider implementation for the given provider name.
// Unknown providers return nil and should be treated as "no cloud metadata".
func LookupProvider(name string) Provider {
	if factory, ok := providerRegistry[name]; ok {
		return factory()
	}
	return nil
}

// Providers returns the registered provider names in sorted order.
func Providers() []string {
	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
