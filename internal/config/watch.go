package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/api/schemas"
)

// WatchHeuristics watches the loaded config file and publishes the heuristic
// toggles whenever they change. The channel is closed when ctx is done.
func WatchHeuristics(ctx context.Context, v *viper.Viper, logger *zap.Logger) <-chan schemas.HeuristicSettings {
	out := make(chan schemas.HeuristicSettings, 1)
	changes := make(chan struct{}, 1)

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Debug("Config file changed.", zap.String("file", e.Name), zap.String("op", e.Op.String()))
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	v.WatchConfig()

	go func() {
		defer close(out)
		last := readHeuristics(v)
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				cur := readHeuristics(v)
				if cur == last {
					continue
				}
				last = cur
				logger.Info("Heuristic settings updated.",
					zap.Bool("editor", cur.EnableEditorHeuristics),
					zap.Bool("send_button", cur.EnableSendButtonHeuristics))
				select {
				case out <- cur:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func readHeuristics(v *viper.Viper) schemas.HeuristicSettings {
	return schemas.HeuristicSettings{
		EnableEditorHeuristics:     v.GetBool("detector.enable_editor_heuristics"),
		EnableSendButtonHeuristics: v.GetBool("detector.enable_send_button_heuristics"),
	}
}
