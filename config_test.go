package pianoroll

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOptionsDefaults(t *testing.T) {
	opts, e := LoadOptions(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, e)
	assert.Equal(t, DefaultOptions(), opts)
	assert.NoError(t, opts.Validate())
}

func TestOptionsSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.json")
	opts := DefaultOptions()
	opts.InputLength = 32
	opts.Recurrent = true
	opts.Filter = "4/4-8-24-2-120"
	opts.Threshold = 4
	require.NoError(t, opts.Save(path))
	loaded, e := LoadOptions(path)
	require.NoError(t, e)
	assert.Equal(t, opts, loaded)
	assert.Equal(t, 4, loaded.ComposeOptions().Threshold)
}

func TestLoadOptionsPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "options.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"targetLength": 4}`), 0644))
	opts, e := LoadOptions(path)
	require.NoError(t, e)
	assert.Equal(t, 4, opts.TargetLength)
	assert.Equal(t, 16, opts.InputLength)
}

func TestLoadOptionsInvalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"inputLength": -1}`), 0644))
	_, e := LoadOptions(bad)
	assert.Error(t, e)
	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{`), 0644))
	_, e = LoadOptions(broken)
	assert.Error(t, e)
}

func TestOptionsVelocity(t *testing.T) {
	opts := DefaultOptions()
	opts.VelocityLow = 0
	opts.VelocityHigh = 255
	assert.Equal(t, 100.0, opts.Velocity().FromByte(100))
	opts.VelocityHigh = 0
	assert.Error(t, opts.Validate())
}
