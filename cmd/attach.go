// cmd/attach.go
package cmd

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/config"
	"github.com/xkilldash9x/chatpilot/internal/service"
)

func newAttachCmd(a *app) *cobra.Command {
	var url, site string
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Mount the prompt toolbar into a chat tab and keep it mounted until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := resolveSite(site, url)
			if err != nil {
				return err
			}

			mgr, sess, err := a.openTab(ctx, url, true)
			if err != nil {
				return err
			}
			defer shutdownBrowser(mgr, a.logger)

			var opts []service.Option
			if a.viper.ConfigFileUsed() != "" {
				opts = append(opts, service.WithSettings(config.WatchHeuristics(ctx, a.viper, a.logger)))
			}
			comps, err := service.NewComponents(ctx, a.cfg, sess, s, a.logger, opts...)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				comps.Shutdown(shutdownCtx)
			}()

			m, err := comps.Injector.Start(ctx)
			if err != nil {
				return err
			}
			pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Toolbar mounted on %s (%s container). Press Ctrl+C to detach.", s, m.Source)

			<-ctx.Done()
			a.logger.Info("Detaching.", zap.String("site", string(s)))
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "chat page URL (an open tab with this URL is reused)")
	cmd.Flags().StringVar(&site, "site", "", "site name (detected from --url when empty)")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
