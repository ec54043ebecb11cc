package asyncore

import (
	"log"

	"github.com/joeycumines/logiface"
)

// logError reports an error that the host should see, even when no logger
// is configured. A panicking logger falls back to log.Printf.
func (s *Scheduler) logError(category, msg string, err error) {
	if b := s.logger.Err(); b != nil {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("ERROR: asyncore: %s: %s: %v (logger panicked: %v)", category, msg, err, r)
			}
		}()
		b.Str("category", category).
			Err(err).
			Log(msg)
		return
	}
	log.Printf("ERROR: asyncore: %s: %s: %v", category, msg, err)
}

// debug returns a builder for a debug entry in category, or nil when
// debug logging is disabled. All builder methods are nil-safe.
func (s *Scheduler) debug(category string) *logiface.Builder[logiface.Event] {
	return s.logger.Debug().Str("category", category)
}

func (s *Scheduler) warning(category string) *logiface.Builder[logiface.Event] {
	return s.logger.Warning().Str("category", category)
}

func (s *Scheduler) info(category string) *logiface.Builder[logiface.Event] {
	return s.logger.Info().Str("category", category)
}
