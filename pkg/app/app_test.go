package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cliflag "k8s.io/component-base/cli/flag"
)

type nested struct {
	Port int `mapstructure:"port"`
}

type demoOptions struct {
	Name   string `mapstructure:"name"`
	Nested nested `mapstructure:"nested"`

	completed bool
	invalid   bool
}

func (o *demoOptions) Flags() cliflag.NamedFlagSets {
	fss := cliflag.NamedFlagSets{}
	fs := fss.FlagSet("demo")
	fs.StringVar(&o.Name, "name", "default", "A name.")
	fs.IntVar(&o.Nested.Port, "nested.port", 1, "A port.")
	return fss
}

func (o *demoOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *demoOptions) Validate() error {
	if o.invalid {
		return errors.New("invalid")
	}
	return nil
}

func runDemo(t *testing.T, opts *demoOptions, args ...string) error {
	t.Helper()
	ran := false
	a := NewApp("demo-app", "demo", WithOptions(opts), WithDefaultValidArgs(),
		WithRunFunc(func() error { ran = true; return nil }))
	cmd := a.Command()
	cmd.SetArgs(args)
	err := cmd.Execute()
	assert.Equal(t, err == nil, ran)
	return err
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: file\nnested:\n  port: 9\n"), 0o600))

	opts := &demoOptions{}
	require.NoError(t, runDemo(t, opts, "--config", path, "--name", "flag"))

	assert.Equal(t, "flag", opts.Name)
	assert.Equal(t, 9, opts.Nested.Port)
	assert.True(t, opts.completed)
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("DEMO_APP_NESTED_PORT", "7")

	opts := &demoOptions{}
	require.NoError(t, runDemo(t, opts))

	assert.Equal(t, "default", opts.Name)
	assert.Equal(t, 7, opts.Nested.Port)
}

func TestValidationFailureStopsRun(t *testing.T) {
	opts := &demoOptions{invalid: true}
	require.Error(t, runDemo(t, opts))
}

func TestRejectsPositionalArgs(t *testing.T) {
	require.Error(t, runDemo(t, &demoOptions{}, "extra"))
}

func TestMissingConfigFile(t *testing.T) {
	require.Error(t, runDemo(t, &demoOptions{}, "--config", filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestEnvPrefix(t *testing.T) {
	assert.Equal(t, "CPEER_HMI_BROKER", envPrefix("cpeer-hmi-broker"))
}
