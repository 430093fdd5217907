package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const appSettingsJSON = `{
  "Logging": {
    "LogLevel": { "Default": "Information" }
  },
  "AllowedHosts": "*",
  "AzureStorageSettings": {
    "BLOB_CONNECTION_STRING": "DefaultEndpointsProtocol=https;AccountName=videos;AccountKey=a2V5;EndpointSuffix=core.windows.net",
    "BLOB_CONTAINER_NAME": "videos"
  },
  "Origins": ["https://a.example.com", "https://b.example.com"],
  "MaxUploadMB": 512,
  "Secure": true,
  "Empty": null
}`

const appSettingsYAML = `
AzureStorageSettings:
  BLOB_CONNECTION_STRING: "UseDevelopmentStorage=true"
  BLOB_CONTAINER_NAME: media
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadWithEnv_JSONFile(t *testing.T) {
	assert := require.New(t)

	settings, err := LoadWithEnv(writeFile(t, "appsettings.json", appSettingsJSON), map[string]string{})
	assert.NoError(err)

	azure := settings.AzureStorage()
	assert.Equal("DefaultEndpointsProtocol=https;AccountName=videos;AccountKey=a2V5;EndpointSuffix=core.windows.net", azure.ConnectionString)
	assert.Equal("videos", azure.ContainerName)
	assert.NoError(azure.Validate())

	assert.Equal("Information", settings.Get("Logging:LogLevel:Default"))
	assert.Equal("*", settings.Get("AllowedHosts"))
	assert.Equal("https://b.example.com", settings.Get("Origins:1"))
	assert.Equal("512", settings.Get("MaxUploadMB"))
	assert.Equal("true", settings.Get("Secure"))
	assert.Equal("", settings.Get("Empty"))
	assert.Equal("", settings.Get("Missing"))
}

func TestLoadWithEnv_YAMLFile(t *testing.T) {
	assert := require.New(t)

	settings, err := LoadWithEnv(writeFile(t, "appsettings.yml", appSettingsYAML), nil)
	assert.NoError(err)

	assert.Equal("media", settings.AzureStorage().ContainerName)
	assert.Equal("UseDevelopmentStorage=true", settings.AzureStorage().ConnectionString)
}

func TestLoadWithEnv_CaseInsensitiveKeys(t *testing.T) {
	settings, err := LoadWithEnv(writeFile(t, "appsettings.json", appSettingsJSON), nil)
	require.NoError(t, err)

	require.Equal(t, "videos", settings.Get("azurestoragesettings:blob_container_name"))
}

func TestLoadWithEnv_EnvironmentOverridesFile(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "double underscore separator",
			env:  map[string]string{"AzureStorageSettings__BLOB_CONTAINER_NAME": "from-env"},
		},
		{
			name: "colon separator",
			env:  map[string]string{"AzureStorageSettings:BLOB_CONTAINER_NAME": "from-env"},
		},
		{
			name: "upper case",
			env:  map[string]string{"AZURESTORAGESETTINGS__BLOB_CONTAINER_NAME": "from-env"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings, err := LoadWithEnv(writeFile(t, "appsettings.json", appSettingsJSON), tt.env)
			require.NoError(t, err)

			azure := settings.AzureStorage()
			require.Equal(t, "from-env", azure.ContainerName)
			require.Contains(t, azure.ConnectionString, "AccountName=videos")
		})
	}
}

func TestLoadWithEnv_MissingFile(t *testing.T) {
	settings, err := LoadWithEnv(filepath.Join(t.TempDir(), "appsettings.json"), map[string]string{
		"AzureStorageSettings__BLOB_CONNECTION_STRING": "AccountName=a;AccountKey=b",
		"AzureStorageSettings__BLOB_CONTAINER_NAME":    "videos",
	})
	require.NoError(t, err)
	require.NoError(t, settings.AzureStorage().Validate())
}

func TestLoadWithEnv_NoPath(t *testing.T) {
	settings, err := LoadWithEnv("", nil)
	require.NoError(t, err)
	require.Equal(t, AzureStorageSettings{}, settings.AzureStorage())
}

func TestLoadWithEnv_InvalidFile(t *testing.T) {
	_, err := LoadWithEnv(writeFile(t, "appsettings.json", "{ not json: ]"), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to parse settings file")
}

func TestAzureStorageSettings_Validate(t *testing.T) {
	tests := []struct {
		name     string
		settings AzureStorageSettings
		errMsg   string
	}{
		{
			name:     "missing connection string",
			settings: AzureStorageSettings{ContainerName: "videos"},
			errMsg:   "missing setting: " + ConnectionStringKey,
		},
		{
			name:     "missing container",
			settings: AzureStorageSettings{ConnectionString: "AccountName=a"},
			errMsg:   "missing setting: " + ContainerNameKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.settings.Validate()
			require.ErrorIs(t, err, ErrMissingSetting)
			require.EqualError(t, err, tt.errMsg)
		})
	}
}

func TestLoad_UsesProcessEnvironment(t *testing.T) {
	t.Setenv("AzureStorageSettings__BLOB_CONTAINER_NAME", "process-env")

	settings, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "process-env", settings.AzureStorage().ContainerName)
}
