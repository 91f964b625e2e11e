package canonicalization

import "testing"

func TestNormalizeDimensionName(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "already clean", input: "Kubernetes", want: "Kubernetes"},
		{name: "surrounding spaces", input: "  Kubernetes ", want: "Kubernetes"},
		{name: "internal tabs and spaces", input: "Google\tCloud   Platform", want: "Google Cloud Platform"},
		{name: "non-breaking space", input: "\u00a0Go\u00a0", want: "Go"},
		{name: "case preserved", input: "PostgreSQL", want: "PostgreSQL"},
		{name: "blank", input: "   ", want: ""},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeDimensionName(tt.input); got != tt.want {
				t.Errorf("NormalizeDimensionName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDimensionKey_CosmeticVariantsCollapse(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	variants := []string{"Kubernetes", " kubernetes ", "KUBERNETES", "kuberNetes\t"}

	want := DimensionKey(variants[0])
	for _, v := range variants[1:] {
		if got := DimensionKey(v); got != want {
			t.Errorf("DimensionKey(%q) = %q, want %q", v, got, want)
		}
	}

	if DimensionKey("Google Cloud") == DimensionKey("GoogleCloud") {
		t.Error("DimensionKey() must not remove word boundaries")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	if got := NormalizeEmail("  Jane.Doe@Example.COM "); got != "jane.doe@example.com" {
		t.Errorf("NormalizeEmail() = %q", got)
	}
}
