// cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/observability"
)

// app carries what PersistentPreRunE loads for the subcommands.
type app struct {
	cfgFile string
	viper   *viper.Viper
	cfg     *config.Config
	logger  *zap.Logger
}

// newRootCmd builds a fresh command tree. Tests use it to get isolated state.
func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:           "chatpilot",
		Short:         "chatpilot drives AI chat sites: inserts prompts, sends them and heals broken selectors.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	root.PersistentFlags().Bool("headless", false, "run a launched Chrome headless")
	root.PersistentFlags().String("remote-url", "", "DevTools URL of a running Chrome to attach to")
	root.PersistentFlags().String("store", "", "selector store driver (file or postgres)")
	root.PersistentFlags().String("store-path", "", "selector file for the file store")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newVersionCmd(),
		newSendCmd(a),
		newProbeCmd(a),
		newSelectorsCmd(a),
		newAttachCmd(a),
	)
	return root, a
}

// load reads config.yaml, CHATPILOT_* env vars and flag overrides, then
// initializes the global logger.
func (a *app) load(cmd *cobra.Command) error {
	v := viper.New()
	config.SetDefaults(v)
	if err := initializeConfig(v, a.cfgFile); err != nil {
		return err
	}
	if err := bindFlags(cmd, v); err != nil {
		return err
	}
	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return err
	}
	a.viper = v
	a.cfg = cfg
	a.logger = observability.InitializeLogger(cfg.Logger())
	a.logger.Debug("Configuration loaded.", zap.String("file", v.ConfigFileUsed()))
	return nil
}

func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("CHATPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// configFlags maps command flags onto config keys.
var configFlags = map[string]string{
	"headless":   "browser.headless",
	"remote-url": "browser.remote_url",
	"store":      "store.driver",
	"store-path": "store.path",
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for flag, key := range configFlags {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// Execute runs the command tree under ctx.
func Execute(ctx context.Context) {
	root, _ := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command failed.", zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		observability.Sync()
		os.Exit(1)
	}
	observability.Sync()
}
