package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil, envMap(map[string]string{"CONND_DB": "test.db"}))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 9000, cfg.GRPCPort)
	assert.Equal(t, "test.db", cfg.DBPath)
	assert.Equal(t, "/profile/default", cfg.ProfilePath)
	assert.False(t, cfg.MockMode)
	assert.Zero(t, cfg.ConnectTimeout)
}

func TestParse_EnvThenFlags(t *testing.T) {
	env := envMap(map[string]string{
		"CONND_ADDR":            ":9999",
		"CONND_MOCK":            "true",
		"CONND_CONNECT_TIMEOUT": "30s",
		"CONND_DB":              "env.db",
	})

	cfg, err := Parse([]string{"-addr", ":7070", "-db", "flag.db", "-profile", "/profile/work"}, env)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Addr, "flag overrides env")
	assert.True(t, cfg.MockMode, "env overrides default")
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, "flag.db", cfg.DBPath)
	assert.Equal(t, "/profile/work", cfg.ProfilePath)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		env  map[string]string
	}{
		{"malformed env int", nil, map[string]string{"CONND_GRPC": "many"}},
		{"malformed env duration", nil, map[string]string{"CONND_CONNECT_TIMEOUT": "soon"}},
		{"port out of range", []string{"-grpc", "70000"}, nil},
		{"negative timeout", []string{"-connect-timeout", "-1s"}, nil},
		{"unknown flag", []string{"-nope"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := map[string]string{"CONND_DB": "x.db"}
			for k, v := range tt.env {
				env[k] = v
			}
			_, err := Parse(tt.args, envMap(env))
			assert.Error(t, err)
		})
	}
}
