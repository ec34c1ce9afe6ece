package guard

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"walkeryt/internal/logging"
)

// InstallSignalHandlers terminates every registered child when SIGINT,
// SIGTERM, or SIGHUP arrives, then calls onSignal. The returned function
// stops listening.
func (g *Guard) InstallSignalHandlers(ctx context.Context, onSignal func(os.Signal)) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	quit := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		select {
		case sig := <-sigs:
			g.logger.Info("signal received; cleaning up", logging.String("signal", sig.String()))
			g.Terminate()
			if onSignal != nil {
				onSignal(sig)
			}
		case <-ctx.Done():
		case <-quit:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigs)
			close(quit)
			<-finished
		})
	}
}
