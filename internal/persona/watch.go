package persona

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"gosha-bot/internal/logging"
)

// Watch reloads the persona file on change and passes each successfully parsed
// version to onChange. It blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Persona)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	// Editors replace files via rename, so watch the directory.
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)
	l := logging.L()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			p, err := Load(path)
			if err != nil {
				l.Warn().Err(err).Str("path", path).Msg("persona reload failed, keeping previous")
				continue
			}
			l.Info().Str("path", path).Msg("persona reloaded")
			onChange(p)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.Warn().Err(err).Msg("persona watcher error")
		}
	}
}
