package cmd

import (
	"errors"
	"os"
	"os/user"
	"sync"
	"time"

	"github.com/spf13/cobra"
)

// shutdownGrace bounds how long a stopping daemon waits for in-flight
// handlers before giving up on them.
const shutdownGrace = 2 * time.Second

// waitTimeout waits for wg up to the grace period. Returns false when the
// wait gave up, which callers log and move on from; a blocked handler must
// not wedge shutdown.
func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}

// resolveUser returns the --user flag value when given, otherwise the OS
// identity of the process.
func resolveUser(cmd *cobra.Command) (string, error) {
	if u, _ := cmd.Flags().GetString("user"); u != "" {
		return u, nil
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username, nil
	}
	if name := os.Getenv("USER"); name != "" {
		return name, nil
	}
	return "", errors.New("cannot determine the current user; pass --user")
}
