// Package asyncore provides a cooperative, single-goroutine event loop built
// around periodic tasks, plus two I/O facilities driven by it: a framed
// message channel to worker processes, and a non-blocking TCP/TLS acceptor.
//
// # Scheduling
//
// A [Scheduler] owns tasks, each a callback with a period. Tasks belong to
// one of three kinds of group:
//   - essential tasks ([Scheduler.Add]) keep [Scheduler.Run] alive
//   - inessential tasks ([Scheduler.AddInessential]) run only alongside
//     other tasks, and never keep the loop alive on their own
//   - condition-gated tasks ([Scheduler.Condition]) run while a predicate
//     holds; the first time it does not, the condition's on-false handlers
//     run and the condition is discarded along with its tasks
//
// Within an iteration, due tasks fire in order: essential tasks, then
// conditions in creation order, then inessential tasks, each group in
// insertion order. The loop then sleeps until the next edge of the shortest
// period, unless a task with that period is running late, in which case it
// iterates again immediately. Callbacks receive a late flag, so they can
// shed work rather than fall further behind.
//
// # Thread Safety
//
// None. Every method of a [Scheduler], and of the values it hands out, must
// be called from the goroutine running the loop, or before it starts.
// Goroutines used internally (process reaping, TLS handshakes, reading
// stdin) only ever hand results to the loop.
//
// # Worker Processes
//
// [Spawn] runs a child process and exchanges messages with it. Each message
// is encoded with a [Codec] and wrapped in NUL bytes. The parent writes
// frames to the child's standard input and reads them from its standard
// error; anything the child writes to standard error outside of a frame is
// passed through as diagnostics, and its standard output is passed through
// unchanged. The child side is [NewMaster].
//
// # Servers
//
// [Listen] creates an [Endpoint], optionally serving TLS. A [Server] accepts
// from all of its endpoints in a single task, handing each connection to
// the [ClientHandler] once accepted, or once its TLS handshake succeeds.
//
// # Usage
//
//	s, err := asyncore.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if _, err := s.Add(func(late bool) {
//	    fmt.Println("tick")
//	}, time.Second); err != nil {
//	    log.Fatal(err)
//	}
//
//	stdin := asyncore.InitStdin(s)
//	_ = stdin
//	s.On(asyncore.EventStdinLine, func(e *asyncore.Event) {
//	    if e.Arg(0) == "shutdown" {
//	        s.Exit()
//	    }
//	})
//
//	if err := s.Run(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
package asyncore
