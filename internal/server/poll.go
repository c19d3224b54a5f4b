package server

import (
	"errors"
	"time"

	"go.uber.org/zap"
)

const defaultPollPeriod = 5 * time.Second

var errNothingWatched = errors.New("no repository directory could be watched")

func (s *Server) pollRepos(targets []*target) {
	defer s.wg.Done()

	period := s.watch.PollPeriod
	if period <= 0 {
		period = defaultPollPeriod
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	s.logger.Info("repository polling started", zap.Duration("period", period))

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("repository polling stopped")
			return

		case <-ticker.C:
			for _, t := range targets {
				s.pollOnce(t)
			}
		}
	}
}

// pollOnce keeps one unreadable repository from stopping the loop.
func (s *Server) pollOnce(t *target) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic while polling",
				zap.String("repository", t.node.Folder().Name),
				zap.Any("panic", r))
		}
	}()
	s.refresh(t, "poll")
}
