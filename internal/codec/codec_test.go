package codec

import (
	"bytes"
	"strings"
	"testing"

	"nodeclass/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleClassification() *domain.Classification {
	c := domain.NewClassification("web01")
	c.SetClasses([]string{"ntp", "nginx", "ntp"})
	c.Parameters["tz"] = "UTC"
	c.Parameters["port"] = "80"
	c.Parameters["debug"] = "true"
	return c
}

func export(t *testing.T, e Exporter, c *domain.Classification) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, e.Export(c, &buf))
	return buf.String()
}

func TestYAMLExport(t *testing.T) {
	tests := []struct {
		name string
		in   *domain.Classification
		want string
	}{
		{
			name: "classes then sorted parameters",
			in:   sampleClassification(),
			want: "classes:\n  - nginx\n  - ntp\nparameters:\n  debug: \"true\"\n  port: \"80\"\n  tz: UTC\n",
		},
		{
			name: "empty classification",
			in:   domain.NewClassification("bare"),
			want: "classes: []\nparameters: {}\n",
		},
		{
			name: "hand-built unsorted classes",
			in:   &domain.Classification{Classes: []string{"b", "a", "b"}},
			want: "classes:\n  - a\n  - b\nparameters: {}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, export(t, NewYAMLCodec(), tt.in))
		})
	}
}

func TestJSONExport(t *testing.T) {
	got := export(t, NewJSONCodec(), sampleClassification())
	want := `{
  "classes": [
    "nginx",
    "ntp"
  ],
  "parameters": {
    "debug": "true",
    "port": "80",
    "tz": "UTC"
  }
}
`
	assert.Equal(t, want, got)

	empty := export(t, NewJSONCodec(), domain.NewClassification("bare"))
	assert.Equal(t, "{\n  \"classes\": [],\n  \"parameters\": {}\n}\n", empty)
}

func TestExportIsByteIdentical(t *testing.T) {
	for _, e := range []Exporter{NewYAMLCodec(), NewJSONCodec()} {
		t.Run(e.Format(), func(t *testing.T) {
			first := export(t, e, sampleClassification())
			for i := 0; i < 20; i++ {
				assert.Equal(t, first, export(t, e, sampleClassification()))
			}
		})
	}
}

func TestExportOmitsNodeName(t *testing.T) {
	for _, e := range []Exporter{NewYAMLCodec(), NewJSONCodec()} {
		assert.NotContains(t, export(t, e, sampleClassification()), "web01")
	}
}

func TestCodecLookup(t *testing.T) {
	exporters := map[string]string{"": FormatYAML, "yaml": FormatYAML, "yml": FormatYAML, "json": FormatJSON}
	for name, want := range exporters {
		e, err := ExporterFor(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, e.Format())
	}
	_, err := ExporterFor("xml")
	assert.ErrorIs(t, err, domain.ErrInvalid)

	importers := map[string]string{"": FormatSeed, "seed": FormatSeed, "yaml": FormatSeed, FormatAnsible: FormatAnsible}
	for name, want := range importers {
		i, err := ImporterFor(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, i.Format())
	}
	_, err = ImporterFor("csv")
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestSeedParse(t *testing.T) {
	doc := `
classes: [ntp]
groups:
  - name: web
    description: frontends
    classes: [nginx]
    parameters:
      port: "80"
    subgroups: [base]
    nodes: [web01]
  - name: base
nodes:
  - name: web01
    parameters:
      env: prod
`
	fragment, err := NewSeedCodec().Parse(strings.NewReader(doc))
	require.NoError(t, err)

	assert.Equal(t, []string{"ntp"}, fragment.Classes)
	require.Len(t, fragment.Groups, 2)
	assert.Equal(t, domain.GroupSeed{
		Name:        "web",
		Description: "frontends",
		Classes:     []string{"nginx"},
		Parameters:  map[string]string{"port": "80"},
		Subgroups:   []string{"base"},
		Nodes:       []string{"web01"},
	}, fragment.Groups[0])
	require.Len(t, fragment.Nodes, 1)
	assert.Equal(t, "prod", fragment.Nodes[0].Parameters["env"])
}

func TestSeedParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown field", "groups:\n  - name: web\n    colour: blue\n"},
		{"blank group name", "groups:\n  - description: nameless\n"},
		{"blank node name", "nodes:\n  - parameters: {a: b}\n"},
		{"not yaml", "groups: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSeedCodec().Parse(strings.NewReader(tt.doc))
			assert.ErrorIs(t, err, domain.ErrInvalid)
		})
	}
}

func TestSeedParseEmpty(t *testing.T) {
	fragment, err := NewSeedCodec().Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, fragment.Groups)
	assert.Empty(t, fragment.Nodes)
}

func TestAnsibleExport(t *testing.T) {
	inv := &Inventory{
		Hosts: []InventoryHost{
			{Name: "web01", Vars: map[string]string{"port": "8443"}},
			{Name: "db01"},
		},
		Groups: []InventoryGroup{
			{Name: "web", Children: []string{"base"}, Hosts: []string{"web01"}, Vars: map[string]string{"port": "80"}},
			{Name: "base", Vars: map[string]string{"tz": "UTC"}},
			{Name: "empty"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewAnsibleCodec().Export(inv, &buf))

	want := `all:
  hosts:
    db01: {}
    web01:
      port: "8443"
  children:
    base:
      vars:
        tz: UTC
    empty: {}
    web:
      hosts:
        web01: {}
      vars:
        port: "80"
      children:
        base: {}
`
	assert.Equal(t, want, buf.String())
}

func TestAnsibleParse(t *testing.T) {
	doc := `
all:
  hosts:
    web01:
      port: 8443
      tags: [a, b]
  children:
    web:
      hosts:
        web01: {}
        web02:
      vars:
        port: 80
        tls: true
      children:
        base:
          vars:
            tz: UTC
`
	fragment, err := NewAnsibleCodec().Parse(strings.NewReader(doc))
	require.NoError(t, err)

	require.Len(t, fragment.Groups, 2)
	base, web := fragment.Groups[0], fragment.Groups[1]
	assert.Equal(t, "base", base.Name)
	assert.Equal(t, map[string]string{"tz": "UTC"}, base.Parameters)
	assert.Equal(t, "web", web.Name)
	assert.Equal(t, []string{"web01", "web02"}, web.Nodes)
	assert.Equal(t, []string{"base"}, web.Subgroups)
	assert.Equal(t, map[string]string{"port": "80", "tls": "true"}, web.Parameters)

	require.Len(t, fragment.Nodes, 2)
	assert.Equal(t, "web01", fragment.Nodes[0].Name)
	assert.Equal(t, map[string]string{"port": "8443", "tags": "[a, b]"}, fragment.Nodes[0].Parameters)
	assert.Equal(t, "web02", fragment.Nodes[1].Name)
	assert.Nil(t, fragment.Nodes[1].Parameters)
}

func TestAnsibleRoundTrip(t *testing.T) {
	inv := &Inventory{
		Hosts:  []InventoryHost{{Name: "web01", Vars: map[string]string{"port": "8443"}}},
		Groups: []InventoryGroup{{Name: "web", Hosts: []string{"web01"}, Vars: map[string]string{"enabled": "true"}}},
	}

	var buf bytes.Buffer
	require.NoError(t, NewAnsibleCodec().Export(inv, &buf))

	fragment, err := NewAnsibleCodec().Parse(&buf)
	require.NoError(t, err)
	require.Len(t, fragment.Groups, 1)
	assert.Equal(t, map[string]string{"enabled": "true"}, fragment.Groups[0].Parameters)
	assert.Equal(t, []string{"web01"}, fragment.Groups[0].Nodes)
	require.Len(t, fragment.Nodes, 1)
	assert.Equal(t, "8443", fragment.Nodes[0].Parameters["port"])
}
