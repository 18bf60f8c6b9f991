// internal/browser/allocator.go
package browser

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/mitchellh/go-homedir"

	"github.com/xkilldash9x/chatpilot/internal/config"
)

// allocatorFlags computes the Chrome command line flags for a launch.
func allocatorFlags(cfg config.BrowserConfig) map[string]any {
	flags := map[string]any{
		"no-sandbox":            true,
		"disable-dev-shm-usage": true,
		"headless":              cfg.Headless,
		"no-first-run":          true,
	}
	if cfg.Headless {
		flags["disable-gpu"] = true
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		flags["window-size"] = fmt.Sprintf("%d,%d", cfg.WindowWidth, cfg.WindowHeight)
	}
	if dir := strings.TrimSpace(cfg.UserDataDir); dir != "" {
		if expanded, err := homedir.Expand(dir); err == nil {
			dir = expanded
		}
		flags["user-data-dir"] = dir
	}
	return flags
}

// AllocatorOptions builds the exec allocator options for launching Chrome.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range allocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
