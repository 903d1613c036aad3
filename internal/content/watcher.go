package content

import (
	"context"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const debounce = 300 * time.Millisecond

type Watcher struct {
	dir     string
	watcher *fsnotify.Watcher
}

func NewWatcher(dir string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "can't build content watcher")
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, errors.Wrapf(err, "can't watch %s", dir)
	}
	return &Watcher{dir: dir, watcher: watcher}, nil
}

// Run calls onChange once a burst of Markdown file events has settled. It
// returns when ctx is done and closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context, onChange func()) {
	defer w.watcher.Close()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(e.Name, ".md") {
				continue
			}
			log.Debug().Str("file", e.Name).Str("event", e.Op.String()).Msg("content file event")
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, onChange)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Str("dir", w.dir).Msg("content watcher error")
		}
	}
}
