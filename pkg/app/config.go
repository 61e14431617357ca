package app

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/autopeer-io/hmibroker/pkg/log"
)

const configFlagName = "config"

// addConfigFlag registers --config on fs. Every option can also be set
// through an environment variable, e.g. HMIBROKER_MQTT_BROKER for --mqtt.broker.
func addConfigFlag(v *viper.Viper, envPrefix string, fs *pflag.FlagSet) {
	fs.StringP(configFlagName, "c", "", "Read configuration from the specified YAML or JSON file.")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// loadConfig merges the config file, environment and flags into opts.
// Flags set on the command line win over the file.
func loadConfig(v *viper.Viper, fs *pflag.FlagSet, opts any) error {
	if err := v.BindPFlags(fs); err != nil {
		return err
	}

	if path, _ := fs.GetString(configFlagName); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read configuration file %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(opts); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	return nil
}

// watchConfig re-reads the config file on change and calls every hook.
// It does nothing when no file was given.
func watchConfig(v *viper.Viper, opts any, hooks []func()) {
	if v.ConfigFileUsed() == "" || len(hooks) == 0 {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if err := v.Unmarshal(opts); err != nil {
			log.Error(err, "Ignoring invalid configuration change", "file", e.Name)
			return
		}
		log.Info("Configuration file changed", "file", e.Name, "op", e.Op.String())
		for _, hook := range hooks {
			hook()
		}
	})
	v.WatchConfig()
}
