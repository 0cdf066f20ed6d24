package core

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(values map[string]interface{}) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestConfigFrom(t *testing.T) {
	conf, err := configFrom(newTestViper(map[string]interface{}{
		"api.baseURL": "https://api.example.com/api/",
	}), "DEV")
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/api", conf.API.BaseURL)
	assert.Equal(t, 15*time.Second, conf.API.Timeout)
	assert.Equal(t, "/earn", conf.Redirect.UserHome)
	assert.Equal(t, "/admin", conf.Redirect.AdminHome)
	assert.Equal(t, "/login", conf.Redirect.Login)
	assert.NotEmpty(t, conf.SecretKey, "debug runs get a throwaway key")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]interface{}
		wantErr string
	}{
		{name: "no base URL", wantErr: ErrMissingBaseURL.Error()},
		{name: "relative base URL", values: map[string]interface{}{"api.baseURL": "/api"}, wantErr: "absolute http(s) URL"},
		{name: "other scheme", values: map[string]interface{}{"api.baseURL": "ftp://api.example.com"}, wantErr: "absolute http(s) URL"},
		{
			name:    "no secret in production",
			values:  map[string]interface{}{"api.baseURL": "https://api.example.com", "debug": false},
			wantErr: "secretKey is required",
		},
		{
			name:   "production",
			values: map[string]interface{}{"api.baseURL": "https://api.example.com", "debug": false, "secretKey": "s3cret"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := configFrom(newTestViper(tt.values), "PROD")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEnvName(t *testing.T) {
	tests := map[string]string{
		"debug":                  "LEARNEARN_DEBUG",
		"api.baseURL":            "LEARNEARN_API_BASE_URL",
		"guard.tablePath":        "LEARNEARN_GUARD_TABLE_PATH",
		"server.shutdownTimeout": "LEARNEARN_SERVER_SHUTDOWN_TIMEOUT",
		"submission.handoffTTL":  "LEARNEARN_SUBMISSION_HANDOFF_TTL",
	}
	for key, want := range tests {
		assert.Equal(t, want, envName(key), key)
	}
}

func TestNewConfig_Env(t *testing.T) {
	t.Setenv("ENV", "DEV")
	t.Setenv("LEARNEARN_API_BASE_URL", "https://api.example.com/api")
	t.Setenv("LEARNEARN_GUARD_TABLE_PATH", "routes.yaml")
	t.Setenv("LEARNEARN_SERVER_SHUTDOWN_TIMEOUT", "9s")
	t.Setenv("LEARNEARN_REDIRECT_USER_HOME", "/learn/earn")

	conf, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/api", conf.API.BaseURL)
	assert.Equal(t, "routes.yaml", conf.Guard.TablePath)
	assert.Equal(t, 9*time.Second, conf.Server.ShutdownTimeout)
	assert.Equal(t, "/learn/earn", conf.Redirect.UserHome)
}

func TestNewConfig_RunTogetherEnv(t *testing.T) {
	t.Setenv("ENV", "DEV")
	t.Setenv("LEARNEARN_API_BASE_URL", "")
	t.Setenv("LEARNEARN_API_BASEURL", "https://old.example.com")

	conf, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://old.example.com", conf.API.BaseURL)
}
