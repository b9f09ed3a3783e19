package main

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dtrain-ml/dtrain/appmaster/version"
)

var v *viper.Viper

// viperKeyDelimiter marks nested values in the configuration. The default
// "." would make a key like "log.level" ambiguous with an object key; ".."
// sidesteps that while keeping "-" usable in flag names.
const viperKeyDelimiter = ".."

//nolint:gochecknoinit
func init() {
	rootCmd.Version = version.Version
	registerConfig()
}

type configKey []string

func (c configKey) EnvName() string {
	return "DTRAIN_" + strings.ReplaceAll(strings.ToUpper(c.FlagName()), "-", "_")
}

func (c configKey) AccessPath() string {
	return strings.ReplaceAll(strings.Join(c, viperKeyDelimiter), "-", "_")
}

func (c configKey) FlagName() string {
	return strings.Join(c, "-")
}

func registerString(flags *pflag.FlagSet, name configKey, value string, usage string) {
	flags.String(name.FlagName(), value, usage)
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

func registerBool(flags *pflag.FlagSet, name configKey, value bool, usage string) {
	flags.Bool(name.FlagName(), value, usage)
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

func registerInt(flags *pflag.FlagSet, name configKey, value int, usage string) {
	flags.Int(name.FlagName(), value, usage)
	_ = v.BindEnv(name.AccessPath(), name.EnvName())
	_ = v.BindPFlag(name.AccessPath(), flags.Lookup(name.FlagName()))
	v.SetDefault(name.AccessPath(), value)
}

func registerConfig() {
	v = viper.NewWithOptions(viper.KeyDelimiter(viperKeyDelimiter))
	v.SetTypeByDefaultValue(true)

	flags := rootCmd.Flags()
	registerString(flags, configKey{"config-file"}, "", "path to the configuration file")
	registerString(flags, configKey{"application-id"}, "", "application id assigned by the RM")
	registerString(flags, configKey{"user"}, "dtrain", "user the containers run as")
	registerString(flags, configKey{"log", "level"}, "info", "log level")
	registerBool(flags, configKey{"log", "color"}, true, "colorize logs")
	registerString(flags, configKey{"rpc", "host"}, "0.0.0.0",
		"AM service host registered with the RM")
	registerInt(flags, configKey{"rpc", "port"}, 18700, "AM service port registered with the RM")
	registerInt(flags, configKey{"tracking", "port"}, 18780, "tracking web server port")
	registerString(flags, configKey{"resource-manager", "endpoint"}, "http://localhost:8030",
		"base URL of the RM's AM gateway")
}
