package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"twin/internal/config"
)

type rootOptions struct {
	configFile string
	envFile    string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "twin",
		Short:         "Digital twin conversational backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (yaml, json or env)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded when present")

	root.AddCommand(
		newServeCommand(opts),
		newConfigCommand(opts),
		newChatCommand(),
		newHistoryCommand(),
	)
	return root
}

func (o *rootOptions) load(v *viper.Viper) (config.Config, error) {
	return config.Load(v, config.LoadOptions{ConfigFile: o.configFile, DotEnv: o.envFile})
}
