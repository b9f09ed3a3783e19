package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.ApplicationID = "application_1700000000000_0001"
	cfg.Roles = []RoleConfig{
		{Name: "worker", Priority: 10, Demand: 2,
			Resource: ResourceConfig{MemoryMiB: 2048, VCores: 2}},
	}
	return cfg
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing app id", func(c *Config) { c.ApplicationID = "" }},
		{"missing rm endpoint", func(c *Config) { c.ResourceManager.Endpoint = "" }},
		{"zero interval", func(c *Config) { c.Scheduler.AllocateInterval = 0 }},
		{"bad log level", func(c *Config) { c.Log.Level = "shout" }},
		{"negative priority", func(c *Config) { c.Roles[0].Priority = -1 }},
		{"negative demand", func(c *Config) { c.Roles[0].Demand = -1 }},
		{"zero resource", func(c *Config) { c.Roles[0].Resource = ResourceConfig{} }},
		{"duplicate priority", func(c *Config) {
			c.Roles = append(c.Roles, RoleConfig{
				Name: "ps", Priority: 10, Demand: 1,
				Resource: ResourceConfig{MemoryMiB: 1024, VCores: 1},
			})
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestDurationUnmarshal(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"90s"`), &d))
	require.Equal(t, 90*time.Second, time.Duration(d))

	require.NoError(t, json.Unmarshal([]byte(`15`), &d))
	require.Equal(t, 15*time.Second, time.Duration(d))

	require.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
	require.Error(t, json.Unmarshal([]byte(`true`), &d))
}

func TestPrintableRoundTrips(t *testing.T) {
	bs, err := validConfig().Printable()
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(bs, &out))
	require.Equal(t, "application_1700000000000_0001", out["application_id"])
}
