// cmd/send.go
package cmd

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/service"
	"github.com/xkilldash9x/chatpilot/internal/sites"
)

func newSendCmd(a *app) *cobra.Command {
	var (
		url, site, text string
		autoSend        bool
		attach          bool
	)
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Insert a prompt into a chat site and optionally send it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := resolveSite(site, url)
			if err != nil {
				return err
			}

			mgr, sess, err := a.openTab(ctx, url, attach)
			if err != nil {
				return err
			}
			defer shutdownBrowser(mgr, a.logger)

			comps, err := service.NewComponents(ctx, a.cfg, sess, s, a.logger)
			if err != nil {
				return err
			}
			defer comps.Shutdown(ctx)

			res, err := comps.Dispatcher.Dispatch(ctx, schemas.Prompt{Name: "cli", Text: text, AutoSend: autoSend})
			if err != nil {
				return fmt.Errorf("dispatch failed: %w", err)
			}
			a.logger.Debug("Dispatch finished.", zap.Bool("inserted", res.Inserted))
			return printSendResult(cmd, s, res)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "chat page URL")
	cmd.Flags().StringVar(&site, "site", "", "site name (detected from --url when empty)")
	cmd.Flags().StringVarP(&text, "text", "t", "", "prompt text")
	cmd.Flags().BoolVar(&autoSend, "auto-send", false, "click send once the site is ready")
	cmd.Flags().BoolVar(&attach, "attach", false, "reuse an open tab whose URL contains --url")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func printSendResult(cmd *cobra.Command, site schemas.Site, res sites.Result) error {
	rows := pterm.TableData{{"Property", "Value"}}
	rows = append(rows, []string{"Site", string(site)})
	rows = append(rows, []string{"Inserted", strconv.FormatBool(res.Inserted)})
	rows = append(rows, []string{"Strategy", string(res.Strategy)})
	if res.Send != nil {
		rows = append(rows, []string{"Send status", string(res.Send.Status)})
		if res.Send.Reason != "" {
			rows = append(rows, []string{"Reason", res.Send.Reason})
		}
		rows = append(rows, []string{"Attempts", strconv.Itoa(res.Send.Attempts)})
		rows = append(rows, []string{"Session", res.Send.SessionID})
	}
	return renderTable(cmd.OutOrStdout(), rows)
}
