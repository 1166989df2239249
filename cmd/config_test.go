package cmd

import (
	"bytes"
	"testing"

	"github.com/huangsam/rosmap/internal/contract"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateConfig_RoundTrips(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/home/me", 0o755))
	var out bytes.Buffer
	require.NoError(t, generateConfig(&out, fs, "/home/me/.rosmap.yaml", false))
	assert.Contains(t, out.String(), "Wrote default configuration to /home/me/.rosmap.yaml")

	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile("/home/me/.rosmap.yaml")
	require.NoError(t, v.ReadInConfig())

	raw := &contract.ConfigRawInput{}
	require.NoError(t, v.Unmarshal(raw))
	assert.Equal(t, contract.DefaultRepositoryFolder, raw.RepositoryFolder)
	assert.Equal(t, []string{"git", "hg", "svn"}, raw.VCS)
	assert.Equal(t, contract.DefaultPackageXMLTags, raw.PackageXMLTags)
	assert.Equal(t, contract.DefaultGitHubRateLimit, raw.GitHubRateLimit)
	assert.Equal(t, "sqlite", raw.RunBackend)

	raw.Workspace = t.TempDir()
	raw.CacheBackend = "none"
	require.NoError(t, contract.ProcessAndValidate(&contract.Config{}, raw))
}

func TestGenerateConfig_KeepsExistingFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "rosmap.yaml", []byte("workers: 3\n"), 0o644))

	err := generateConfig(&bytes.Buffer{}, fs, "rosmap.yaml", false)
	assert.ErrorContains(t, err, "already exists")
	data, err := afero.ReadFile(fs, "rosmap.yaml")
	require.NoError(t, err)
	assert.Equal(t, "workers: 3\n", string(data))

	require.NoError(t, generateConfig(&bytes.Buffer{}, fs, "rosmap.yaml", true))
	data, err = afero.ReadFile(fs, "rosmap.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "repository-folder: repositories")
}

func TestGenerateConfig_Stdout(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, generateConfig(&out, afero.NewMemMapFs(), "", false))
	assert.Contains(t, out.String(), "cache-ttl: 24h0m0s")
	assert.Contains(t, out.String(), "- build_depend")
}
