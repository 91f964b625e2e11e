package aliasing

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		DimensionAliases: map[string]map[string]string{
			"technology": {
				"k8s":    "Kubernetes",
				"golang": "Go",
				" ":      "Ignored",
			},
			"Clearance": {
				"Security Check": "SC",
			},
		},
		DimensionPatterns: []DimensionPattern{
			{Kind: "technology", Pattern: "Java {version}", Canonical: "Java"},
			{Kind: "technology", Pattern: "{product} (AWS)", Canonical: "AWS {product}"},
			{Kind: "technology", Pattern: "", Canonical: "Nothing"},
			{Kind: "language", Pattern: "{lang} (native)", Canonical: "{lang}"},
		},
	}
}

func TestNewResolver_WithValidConfig(t *testing.T) {
	r := NewResolver(testConfig())

	require.NotNil(t, r)
	assert.Equal(t, 3, r.AliasCount())
	assert.Equal(t, 3, r.PatternCount())
}

func TestNewResolver_WithNilConfig(t *testing.T) {
	r := NewResolver(nil)

	require.NotNil(t, r)
	assert.Equal(t, 0, r.AliasCount())
	assert.Equal(t, "Kubernetes", r.Resolve("technology", "Kubernetes"))
}

func TestResolver_Resolve(t *testing.T) {
	r := NewResolver(testConfig())

	tests := []struct {
		name  string
		kind  string
		input string
		want  string
	}{
		{name: "exact alias", kind: "technology", input: "k8s", want: "Kubernetes"},
		{name: "alias is case and whitespace insensitive", kind: "technology", input: "  K8S ", want: "Kubernetes"},
		{name: "alias kind is case insensitive", kind: "clearance", input: "security  check", want: "SC"},
		{name: "alias scoped to kind", kind: "language", input: "golang", want: "golang"},
		{name: "pattern without substitution", kind: "technology", input: "Java 17", want: "Java"},
		{name: "pattern is case insensitive", kind: "technology", input: "java 21", want: "Java"},
		{name: "pattern with substitution", kind: "technology", input: "Lambda (AWS)", want: "AWS Lambda"},
		{name: "pattern scoped to kind", kind: "language", input: "Norwegian (native)", want: "Norwegian"},
		{name: "no match passthrough", kind: "technology", input: "Terraform", want: "Terraform"},
		{name: "empty input", kind: "technology", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Resolve(tt.kind, tt.input))
		})
	}
}

func TestResolver_Match(t *testing.T) {
	r := NewResolver(testConfig())

	canonical, ok := r.Match("technology", "golang")
	assert.True(t, ok)
	assert.Equal(t, "Go", canonical)

	_, ok = r.Match("technology", "Rust")
	assert.False(t, ok)

	var nilResolver *Resolver

	_, ok = nilResolver.Match("technology", "golang")
	assert.False(t, ok)
}

func TestResolver_ConcurrentResolve(t *testing.T) {
	r := NewResolver(testConfig())

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			assert.Equal(t, "Kubernetes", r.Resolve("technology", "k8s"))
			assert.Equal(t, "Java", r.Resolve("technology", "Java 8"))
		}()
	}

	wg.Wait()
}
