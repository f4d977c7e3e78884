package r8econf_test

import (
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/byte4ever/r8econf"
)

func definitionNames(defs []r8econf.PolicyDefinition) []string {
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}

	return names
}

func stepKeysOf(def r8econf.PolicyDefinition) []string {
	keys := make([]string, 0, len(def.Steps))
	for _, s := range def.Steps {
		keys = append(keys, s.Key)
	}

	return keys
}

// ---------------------------------------------------------------------------
// YAML
// ---------------------------------------------------------------------------

func TestLoadConfigYAMLKeepsDeclarationOrder(t *testing.T) {
	src, err := r8econf.LoadConfig(filepath.Join("testdata", "policies.yaml"))
	require.NoError(t, err)

	defs := r8econf.Definitions(src)
	require.Equal(t, []string{"Orders", "inventory", "Broken"}, definitionNames(defs))
	require.Equal(t, []string{"handle", "retry", "timeout", "Metrics"}, stepKeysOf(defs[0]))

	retry := defs[0].Steps[1]
	require.Equal(t, []string{"retryCount", "order"}, retry.Attributes.Keys())
	require.Equal(t, "3", retry.Attributes.Get("retryCount"))
	require.Equal(t, 1, retry.Order())
}

func TestLoadConfigYAMLEmptyValueIsSection(t *testing.T) {
	src, err := r8econf.LoadConfig(filepath.Join("testdata", "policies.yaml"))
	require.NoError(t, err)

	def, ok := r8econf.FindDefinition(src, "orders")
	require.True(t, ok)

	metrics := def.Steps[3]
	require.Equal(t, "metrics", metrics.Type())
	require.Zero(t, metrics.Attributes.Len())
}

func TestLoadConfigYAMLNullLiteralIsAttribute(t *testing.T) {
	src, err := r8econf.LoadConfig(filepath.Join("testdata", "policies.yaml"))
	require.NoError(t, err)

	def, ok := r8econf.FindDefinition(src, "INVENTORY")
	require.True(t, ok)

	fallback := def.Steps[2]
	require.Equal(t, "null", fallback.Attributes.Get("value"))

	step, err := r8econf.ParseStep(def.Name, fallback)
	require.NoError(t, err)
	require.Equal(t, r8econf.FallbackStep{Null: true}, step)
}

// ---------------------------------------------------------------------------
// JSON
// ---------------------------------------------------------------------------

func TestLoadConfigJSONKeepsDeclarationOrder(t *testing.T) {
	src, err := r8econf.LoadConfig(filepath.Join("testdata", "policies.json"))
	require.NoError(t, err)

	// The root key matches case-insensitively.
	defs := r8econf.Definitions(src)
	require.Equal(t, []string{"payments", "search"}, definitionNames(defs))
	require.Equal(t, []string{"throttle", "handle", "fallback"}, stepKeysOf(defs[0]))

	fallback := defs[0].Steps[2]
	require.Equal(t, []string{"value", "valueType", "region"}, fallback.Attributes.Keys())
	require.Equal(t, []string{"region"}, fallback.Extra().Keys())

	require.Equal(t, []string{"caching", "metrics"}, stepKeysOf(defs[1]))
}

// ---------------------------------------------------------------------------
// Tree semantics
// ---------------------------------------------------------------------------

func TestParseConfigSequenceItemsAreIndexed(t *testing.T) {
	src, err := r8econf.ParseConfig([]byte(`
polly:
  p:
    - type: handle
      exceptionType: error
    - type: retry
      retryCount: 2
`))
	require.NoError(t, err)

	defs := r8econf.Definitions(src)
	require.Len(t, defs, 1)
	require.Equal(t, []string{"0", "1"}, stepKeysOf(defs[0]))
	require.Equal(t, "retry", defs[0].Steps[1].Type())
}

func TestParseConfigRejectsScalarRoot(t *testing.T) {
	_, err := r8econf.ParseConfig([]byte(`just a string`))
	require.Error(t, err)
}

func TestParseConfigRejectsInvalidYAML(t *testing.T) {
	_, err := r8econf.ParseConfig([]byte("polly: [unclosed"))
	require.Error(t, err)
}

func TestParseConfigEmptyDocument(t *testing.T) {
	src, err := r8econf.ParseConfig(nil)
	require.NoError(t, err)
	require.Empty(t, r8econf.Definitions(src))
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := r8econf.LoadConfig(filepath.Join("testdata", "absent.yaml"))
	require.Error(t, err)
}

func TestFindDefinitionWithoutRoot(t *testing.T) {
	src := r8econf.NewNode("", r8econf.Attributes{}, r8econf.NewNode("other", r8econf.Attributes{}))

	_, ok := r8econf.FindDefinition(src, "p")
	require.False(t, ok)
	require.Empty(t, r8econf.Definitions(src))
}

func TestNodeBuildsDefinitions(t *testing.T) {
	src := r8econf.NewNode("", r8econf.Attributes{},
		r8econf.NewNode(r8econf.RootKey, r8econf.Attributes{},
			r8econf.NewNode("p", r8econf.Attributes{},
				r8econf.NewNode("timeout", r8econf.NewAttributes("timeoutInSeconds", "1")),
				r8econf.NewNode("metrics", r8econf.Attributes{}),
			),
		),
	)

	def, ok := r8econf.FindDefinition(src, "P")
	require.True(t, ok)
	require.Equal(t, "p", def.Name)
	require.True(t, slices.Equal([]string{"timeout", "metrics"}, stepKeysOf(def)))
}
