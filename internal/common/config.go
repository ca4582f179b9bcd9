package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindCommandlineArgs binds every flag in flags to viper and lets each flag fall back to the
// environment variable named after it, e.g. --forge-namespace reads FORGE_NAMESPACE.
func BindCommandlineArgs(flags *pflag.FlagSet) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	return viper.BindPFlags(flags)
}

// LoadCommandlineArgsFromConfigFile merges a config file into viper. If cfgFile is empty,
// $HOME/.forge.yaml is used when it exists.
func LoadCommandlineArgsFromConfigFile(cfgFile string) error {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			return fmt.Errorf("[LoadCommandlineArgsFromConfigFile] error getting user home directory: %s", err)
		}

		viper.AddConfigPath(home)
		viper.SetConfigName(".forge")
		viper.SetConfigType("yaml")
	}

	err := viper.MergeInConfig()
	if err != nil {
		switch err.(type) {
		case viper.ConfigFileNotFoundError:
			// This only occurs when looking for the default .forge file and it is not present
			// This is not an error as users don't have to specify it, so do nothing
		case *os.PathError:
			if cfgFile != "" {
				return fmt.Errorf("[LoadCommandlineArgsFromConfigFile] error reading config file %s: %s", cfgFile, err)
			}
		default:
			return fmt.Errorf("[LoadCommandlineArgsFromConfigFile] error reading config file %s: %s", viper.ConfigFileUsed(), err)
		}
	}
	return nil
}
