package cloud

import (
	"os"
	"path/filepath"
	"testing"
)

func writeIndicator(t *testing.T, root, path, content string) {
	t.Helper()
	p := filepath.Join(root, path)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
}

func TestDetectorDetect(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  bool
	}{
		{
			name: "no indicators",
			want: false,
		},
		{
			name:  "hypervisor uuid matches",
			files: map[string]string{"/sys/hypervisor/uuid": "ec2e1916-9099-7caf-fd21-012345abcdef\n"},
			want:  true,
		},
		{
			name:  "hypervisor uuid upper case",
			files: map[string]string{"/sys/hypervisor/uuid": "EC2E1916-9099-7CAF-FD21-012345ABCDEF"},
			want:  true,
		},
		{
			name:  "dmi vendor matches",
			files: map[string]string{"/sys/devices/virtual/dmi/id/sys_vendor": "Amazon EC2\n"},
			want:  true,
		},
		{
			name:  "nitro board asset tag matches",
			files: map[string]string{"/sys/devices/virtual/dmi/id/board_asset_tag": "i-0123456789abcdef0\n"},
			want:  true,
		},
		{
			name:  "board asset tag without instance id",
			files: map[string]string{"/sys/devices/virtual/dmi/id/board_asset_tag": "Default string"},
			want:  false,
		},
		{
			name: "both present but not matching",
			files: map[string]string{
				"/sys/hypervisor/uuid":                   "4b1e7a2c-0000-0000-0000-000000000000",
				"/sys/devices/virtual/dmi/id/sys_vendor": "QEMU",
			},
			want: false,
		},
		{
			name: "second indicator matches",
			files: map[string]string{
				"/sys/hypervisor/uuid":                   "xen-something",
				"/sys/devices/virtual/dmi/id/sys_vendor": "Amazon EC2",
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			for path, content := range tt.files {
				writeIndicator(t, root, path, content)
			}

			d := NewDetector(root)
			if got := d.Detect(ProviderAWS); got != tt.want {
				t.Errorf("Detect(aws) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectorDetectProvider(t *testing.T) {
	root := t.TempDir()
	d := NewDetector(root)

	if got := d.DetectProvider(); got != "" {
		t.Fatalf("DetectProvider() on empty root = %q, want empty", got)
	}

	writeIndicator(t, root, "/sys/devices/virtual/dmi/id/product_name", "Google Compute Engine")
	if got := d.DetectProvider(); got != ProviderGCE {
		t.Errorf("DetectProvider() = %q, want %q", got, ProviderGCE)
	}

	writeIndicator(t, root, "/sys/hypervisor/uuid", "ec2abc")
	if got := d.DetectProvider(); got != ProviderAWS {
		t.Errorf("DetectProvider() = %q, want %q (aws is checked first)", got, ProviderAWS)
	}
}

func TestDetectorUnknownProvider(t *testing.T) {
	d := NewDetector(t.TempDir())
	if d.Detect("azure") {
		t.Error("Detect() of a provider without indicators must be false")
	}
}
