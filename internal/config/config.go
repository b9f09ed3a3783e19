// Package config defines the application master's configuration.
package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/dtrain-ml/dtrain/appmaster/pkg/cproto"
	"github.com/dtrain-ml/dtrain/appmaster/pkg/logger"
)

// Duration is a time.Duration that unmarshals from a Go duration string.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw interface{}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch value := raw.(type) {
	case float64:
		*d = Duration(time.Duration(value) * time.Second)
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(err, "invalid duration %q", value)
		}
		*d = Duration(parsed)
		return nil
	default:
		return errors.Errorf("invalid duration: %v", raw)
	}
}

// DefaultConfig returns the default configuration of the application master.
func DefaultConfig() *Config {
	return &Config{
		User: "dtrain",
		Log:  *logger.DefaultConfig(),
		RPC: RPCConfig{
			Host: "0.0.0.0",
			Port: 18700,
		},
		Tracking: TrackingConfig{
			Host: "0.0.0.0",
			Port: 18780,
		},
		ResourceManager: ResourceManagerConfig{
			Endpoint: "http://localhost:8030",
		},
		Scheduler: SchedulerConfig{
			AllocateInterval:     Duration(10 * time.Second),
			EnableUpdateResource: false,
		},
	}
}

// Config is the application master configuration.
type Config struct {
	ConfigFile    string          `json:"config_file"`
	ApplicationID string          `json:"application_id"`
	User          string          `json:"user"`
	Log           logger.Config   `json:"log"`
	RPC           RPCConfig       `json:"rpc"`
	Tracking      TrackingConfig  `json:"tracking"`

	ResourceManager ResourceManagerConfig `json:"resource_manager"`
	Scheduler       SchedulerConfig       `json:"scheduler"`
	Roles           []RoleConfig          `json:"roles"`
}

// ResourceManagerConfig locates the cluster RM's AM gateway.
type ResourceManagerConfig struct {
	Endpoint string `json:"endpoint"`
}

// RPCConfig is the address of the AM service registered with the RM.
type RPCConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// TrackingConfig is the address the tracking web server binds.
type TrackingConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// TrackingURL is the URL reported to the RM at registration.
func (t TrackingConfig) TrackingURL() string {
	return fmt.Sprintf("http://%s:%d", t.Host, t.Port)
}

// SchedulerConfig configures the allocate loop.
type SchedulerConfig struct {
	AllocateInterval     Duration `json:"allocate_interval"`
	EnableUpdateResource bool     `json:"enable_update_resource"`
}

// RoleConfig declares one worker role.
type RoleConfig struct {
	Name     string         `json:"name"`
	Priority int            `json:"priority"`
	Demand   int            `json:"demand"`
	Resource ResourceConfig `json:"resource"`
}

// ResourceConfig is the container shape of a role.
type ResourceConfig struct {
	MemoryMiB uint64 `json:"memory_mib"`
	VCores    uint32 `json:"vcores"`
}

// ToResource converts the config shape into the protocol type.
func (r ResourceConfig) ToResource() cproto.Resource {
	return cproto.Resource{MemoryMiB: r.MemoryMiB, VCores: r.VCores}
}

// Validate checks the configuration, collecting every problem found.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.ApplicationID == "" {
		result = multierror.Append(result, errors.New("application_id must be set"))
	}
	if c.ResourceManager.Endpoint == "" {
		result = multierror.Append(result, errors.New("resource_manager.endpoint must be set"))
	}
	if time.Duration(c.Scheduler.AllocateInterval) <= 0 {
		result = multierror.Append(result, errors.New("scheduler.allocate_interval must be positive"))
	}
	for _, err := range c.Log.Validate() {
		result = multierror.Append(result, err)
	}

	seen := map[int]string{}
	for _, role := range c.Roles {
		if role.Name == "" {
			result = multierror.Append(result, errors.New("roles must be named"))
		}
		if role.Priority < 0 {
			result = multierror.Append(result,
				errors.Errorf("role %s: priority must be non-negative", role.Name))
		}
		if prev, ok := seen[role.Priority]; ok {
			result = multierror.Append(result,
				errors.Errorf("roles %s and %s share priority %d", prev, role.Name, role.Priority))
		}
		seen[role.Priority] = role.Name
		if role.Demand < 0 {
			result = multierror.Append(result,
				errors.Errorf("role %s: demand must be non-negative", role.Name))
		}
		if role.Resource.ToResource().IsZero() {
			result = multierror.Append(result,
				errors.Errorf("role %s: resource must be set", role.Name))
		}
	}

	return result.ErrorOrNil()
}

// Printable returns the configuration as JSON for startup logging.
func (c Config) Printable() ([]byte, error) {
	out, err := json.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "unable to convert config to JSON")
	}
	return out, nil
}
