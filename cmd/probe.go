// cmd/probe.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/browser/dom"
	"github.com/xkilldash9x/chatpilot/internal/heuristics"
	"github.com/xkilldash9x/chatpilot/internal/selectors"
	"github.com/xkilldash9x/chatpilot/internal/service"
	"github.com/xkilldash9x/chatpilot/internal/validator"
)

// probeRow is one resolved target.
type probeRow struct {
	Target   schemas.TargetType
	Source   string
	Selector string
	Element  *dom.Element
	// Usable is whether the element can play its role right now: an editor
	// accepting text, a send button a user could click, a container that can
	// host the toolbar.
	Usable bool
}

func newProbeCmd(a *app) *cobra.Command {
	var url, site, file string
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Show which selectors resolve the editor, send button and toolbar container",
		Long: "probe resolves every target the way the toolbar and dispatcher would, against a live " +
			"page (--url) or a saved HTML fixture (--file).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if (url == "") == (file == "") {
				return fmt.Errorf("exactly one of --url or --file is required")
			}
			s, err := resolveSite(site, url)
			if err != nil {
				return err
			}

			var page schemas.Page
			if file != "" {
				raw, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read fixture: %w", err)
				}
				doc, err := dom.ParseHTML(string(raw))
				if err != nil {
					return fmt.Errorf("parse fixture: %w", err)
				}
				page = staticPage{doc: doc}
			} else {
				mgr, sess, err := a.openTab(ctx, url, true)
				if err != nil {
					return err
				}
				defer shutdownBrowser(mgr, a.logger)
				page = sess
			}

			comps, err := service.NewComponents(ctx, a.cfg, page, s, a.logger)
			if err != nil {
				return err
			}
			defer comps.Shutdown(ctx)

			doc, err := page.Snapshot(ctx)
			if err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
			rows := probe(ctx, comps, doc)

			table := pterm.TableData{{"Target", "Source", "Selector", "Element", "XPath", "Usable", "Ref"}}
			for _, r := range rows {
				ref, xpath := "-", "-"
				if r.Element != nil {
					ref = strconv.FormatInt(r.Element.Ref, 10)
					xpath = dom.XPathOf(r.Element)
				}
				table = append(table, []string{
					r.Target.Label(), r.Source, r.Selector, r.Element.Describe(), xpath, yesNo(r.Usable), ref,
				})
			}
			return renderTable(cmd.OutOrStdout(), table)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "live page to probe (an open tab with this URL is reused)")
	cmd.Flags().StringVar(&file, "file", "", "HTML fixture to probe offline")
	cmd.Flags().StringVar(&site, "site", "", "site name (detected from --url when empty)")
	return cmd
}

// probe resolves the editor and send button through the guard and the
// container through the container cascade.
func probe(ctx context.Context, comps *service.Components, doc *dom.Document) []probeRow {
	set := comps.Catalog.Set(comps.Site)
	var rows []probeRow
	for _, t := range []schemas.TargetType{schemas.TargetEditor, schemas.TargetSendButton} {
		row := probeRow{Target: t, Source: "none"}
		if el := comps.Guard.FindIn(ctx, doc, t); el != nil {
			row.Element = el
			if t == schemas.TargetEditor {
				row.Usable = validator.IsEditable(el)
			} else {
				row.Usable = validator.IsInteractive(el)
			}
			row.Source = string(heuristics.SourceHeuristic)
			for _, sel := range set.Selectors(t) {
				if found, err := doc.QueryAll(sel); err == nil && len(found) > 0 && found[0].Is(el) {
					row.Source, row.Selector = string(heuristics.SourceSelector), sel
					break
				}
			}
		}
		rows = append(rows, row)
	}

	ownID := set.ButtonsContainerID
	if ownID == "" {
		ownID = selectors.DefaultButtonsContainerID
	}
	res := heuristics.NewContainerResolver(nil).Resolve(ctx, heuristics.ContainerRequest{
		Doc:            doc,
		Defaults:       set.Containers,
		OwnContainerID: ownID,
		Anchors:        comps.Guard,
	})
	return append(rows, probeRow{
		Target:   schemas.TargetContainer,
		Source:   string(res.Source),
		Selector: res.Selector,
		Element:  res.Element,
		Usable:   validator.IsUsableForInjection(res.Element, ownID),
	})
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
