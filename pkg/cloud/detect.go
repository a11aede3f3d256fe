package cloud

import (
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Indicator is a local file whose content identifies a cloud environment.
type Indicator struct {
	Path   string
	Prefix string // compared case-insensitively against the trimmed file content
}

// Detector decides whether the host runs inside a cloud environment by
// looking at hypervisor and DMI files. Root is prepended to every indicator
// path so tests can point it at a fake sysfs tree.
type Detector struct {
	Root       string
	Indicators map[string][]Indicator
	Order      []string
}

// NewDetector returns a Detector checking AWS first, then GCE.
func NewDetector(root string) *Detector {
	return &Detector{
		Root: root,
		Indicators: map[string][]Indicator{
			ProviderAWS: {
				{Path: "/sys/hypervisor/uuid", Prefix: "ec2"},
				{Path: "/sys/devices/virtual/dmi/id/board_asset_tag", Prefix: "i-"},
				{Path: "/sys/devices/virtual/dmi/id/sys_vendor", Prefix: "amazon ec2"},
			},
			ProviderGCE: {
				{Path: "/sys/devices/virtual/dmi/id/product_name", Prefix: "google"},
			},
		},
		Order: []string{ProviderAWS, ProviderGCE},
	}
}

// Detect reports whether any indicator of the named provider matches.
// Indicators are checked in order and the first match wins.
func (d *Detector) Detect(provider string) bool {
	for _, ind := range d.Indicators[provider] {
		if d.matches(ind) {
			log.WithFields(log.Fields{
				"provider":  provider,
				"indicator": ind.Path,
			}).Debug("cloud environment detected")
			return true
		}
	}
	return false
}

// DetectProvider returns the name of the first provider whose indicators
// match, or "" when the host does not look like any known cloud.
func (d *Detector) DetectProvider() string {
	for _, name := range d.Order {
		if d.Detect(name) {
			return name
		}
	}
	return ""
}

func (d *Detector) matches(ind Indicator) bool {
	p := filepath.Join(d.Root, ind.Path)

	// #nosec G304 - indicator paths are fixed sysfs locations
	b, err := os.ReadFile(p)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debugf("unable to read cloud indicator %s: %v", p, err)
		}
		return false
	}

	content := strings.ToLower(strings.TrimSpace(string(b)))
	return strings.HasPrefix(content, strings.ToLower(ind.Prefix))
}
