package docker

import (
	"context"
	"time"

	"github.com/munichmade/hostsync/internal/source"
)

var _ source.Watcher = (*Source)(nil)

// reconnectDelay is the pause before resubscribing to a broken event stream.
var reconnectDelay = time.Second

// Watch calls changed whenever a labelled container starts or stops, until
// ctx is done.
func (s *Source) Watch(ctx context.Context, changed func()) error {
	for {
		s.watchEventStream(ctx, changed)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
			s.logger.Debug("reconnecting to Docker event stream")
		}
	}
}

// watchEventStream consumes one subscription until it breaks or ctx is done.
func (s *Source) watchEventStream(ctx context.Context, changed func()) {
	eventCh, errCh := s.client.Events(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-errCh:
			if ok && err != nil && ctx.Err() == nil {
				s.logger.Warn("Docker event stream error", "error", err)
			}
			return

		case event, ok := <-eventCh:
			if !ok {
				return
			}
			// Container events carry the container's labels as attributes.
			if !hasLabelPrefix(event.Actor.Attributes, s.parser.Prefix()) {
				continue
			}

			s.logger.Debug("container event",
				"action", string(event.Action),
				"container", event.Actor.Attributes["name"],
			)
			changed()
		}
	}
}
