package cloud

// Collected holds the instance metadata of the current host in a
// provider-agnostic form. The flattened fields are projected out of Raw; any
// of them may be empty when the provider or the instance tags lack them.
type Collected struct {
	Provider       string
	InstanceID     string
	InstanceType   string
	PrivateIP      string
	Region         string
	RegionShort    string
	Cluster        string // "cluster" tag
	Consul         string // "consul" tag, the cluster join key
	Role           string // "role" tag
	LegacyHostname string // "name" tag as-is
	Hostname       string // "name" tag with underscores turned into hyphens
	Tags           map[string]string
	Raw            map[string]any
}
