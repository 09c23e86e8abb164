package installer

import (
	"os"
	"os/signal"
	"syscall"
)

// withSignalsMasked runs fn with SIGINT/SIGTERM delivery deferred: a
// signal arriving mid-fn is captured and redelivered to this process only
// after fn returns, instead of being allowed to interrupt it. This is the
// Go-idiomatic substitute for the teacher's signal-masking around its
// rename-based keg stash/restore (§4.5, §9 Design Notes: "rollback
// windows ... must run with signals masked") — Go has no direct wrapper
// for blocking signal delivery outright, so this catches and requeues
// instead of truly deferring the kernel's delivery.
func withSignalsMasked(fn func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()

	var pending os.Signal
	for {
		select {
		case s := <-sigs:
			pending = s
		case <-done:
			if pending != nil {
				if p, err := os.FindProcess(os.Getpid()); err == nil {
					_ = p.Signal(pending)
				}
			}
			return
		}
	}
}
