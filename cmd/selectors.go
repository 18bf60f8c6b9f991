// cmd/selectors.go
package cmd

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/persist"
	"github.com/xkilldash9x/chatpilot/internal/selectors"
	"github.com/xkilldash9x/chatpilot/internal/store"
)

func newSelectorsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selectors",
		Short: "Inspect and edit the custom selector overlays",
	}
	cmd.AddCommand(newSelectorsListCmd(a), newSelectorsAddCmd(a), newSelectorsResetCmd(a))
	return cmd
}

func newSelectorsListCmd(a *app) *cobra.Command {
	var site string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the effective selectors per site, custom entries first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			targets := schemas.AllSites
			if site != "" {
				s, err := schemas.ParseSite(site)
				if err != nil {
					return err
				}
				targets = []schemas.Site{s}
			}

			repo, closeRepo, err := store.Open(ctx, a.cfg.Store(), a.logger)
			if err != nil {
				return err
			}
			defer closeRepo()

			catalog := selectors.NewCatalog(a.logger)
			if err := catalog.Load(ctx, repo, targets...); err != nil {
				pterm.Warning.WithWriter(cmd.ErrOrStderr()).Println("Some overlays could not be loaded:", err)
			}

			rows := pterm.TableData{{"Site", "Target", "Origin", "Selector"}}
			for _, s := range targets {
				custom := catalog.Custom(s)
				for _, t := range []schemas.TargetType{schemas.TargetContainer, schemas.TargetEditor, schemas.TargetSendButton} {
					own := make(map[string]bool)
					for _, sel := range custom.Selectors(t) {
						own[sel] = true
					}
					for _, sel := range catalog.Selectors(s, t) {
						origin := "default"
						if own[sel] {
							origin = "custom"
						}
						rows = append(rows, []string{string(s), string(t), origin, sel})
					}
				}
			}
			return renderTable(cmd.OutOrStdout(), rows)
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "only this site")
	return cmd
}

func newSelectorsAddCmd(a *app) *cobra.Command {
	var site, target string
	cmd := &cobra.Command{
		Use:   "add SELECTOR",
		Short: "Prepend a selector to a site's custom overlay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := schemas.ParseSite(site)
			if err != nil {
				return err
			}
			t, err := parseTarget(target)
			if err != nil {
				return err
			}
			selector := strings.TrimSpace(args[0])
			if err := validateSelector(selector); err != nil {
				return err
			}

			repo, closeRepo, err := store.Open(ctx, a.cfg.Store(), a.logger)
			if err != nil {
				return err
			}
			defer closeRepo()

			res := persist.NewSaver(repo, nil, a.logger).SaveFromElement(ctx, persist.SaveRequest{
				Site:             s,
				Type:             t,
				SelectorOverride: selector,
			})
			if !res.OK {
				return res.Err
			}
			pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Saved %s selector for %s: %s", t.Label(), s, selector)
			return nil
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "site name")
	cmd.Flags().StringVar(&target, "target", "", "editor, send-button or container")
	_ = cmd.MarkFlagRequired("site")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newSelectorsResetCmd(a *app) *cobra.Command {
	var site string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop a site's custom overlay, leaving only the built-in selectors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := schemas.ParseSite(site)
			if err != nil {
				return err
			}
			repo, closeRepo, err := store.Open(ctx, a.cfg.Store(), a.logger)
			if err != nil {
				return err
			}
			defer closeRepo()

			if err := repo.DeleteCustomSelectors(ctx, s); err != nil {
				return fmt.Errorf("delete overlay: %w", err)
			}
			pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Custom selectors for %s removed.", s)
			return nil
		},
	}
	cmd.Flags().StringVar(&site, "site", "", "site name")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}

func parseTarget(s string) (schemas.TargetType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "editor":
		return schemas.TargetEditor, nil
	case "send", "send-button", "sendbutton":
		return schemas.TargetSendButton, nil
	case "container":
		return schemas.TargetContainer, nil
	default:
		return "", fmt.Errorf("unknown target %q (want editor, send-button or container)", s)
	}
}

// validateSelector rejects selectors the resolution core could never match.
func validateSelector(selector string) error {
	_, err := dom.MustParseHTML("<body></body>").QueryAll(selector)
	return err
}
