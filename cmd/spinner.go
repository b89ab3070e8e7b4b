// Copyright (c) 2025 Keygate
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"fmt"
	"os"
	"sync"
	"time"

	"keygate/cli/internal/auth"
	"keygate/cli/internal/terminal"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
)

var spinnerFrames = []string{"|", "/", "-", "\\"}

// followLoading shows a spinner while the store reports IsLoading. The
// returned function unsubscribes and removes any spinner still on screen.
func followLoading(store *auth.Store, text string) func() {
	if !terminal.IsInteractive(os.Stdout) {
		return func() {}
	}

	var (
		mu   sync.Mutex
		stop func()
	)
	unsubscribe := store.Subscribe(func(st auth.State) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case st.IsLoading && stop == nil:
			stop = startSpinner(text, 100*time.Millisecond)
		case !st.IsLoading && stop != nil:
			stop()
			stop = nil
		}
	})
	return func() {
		unsubscribe()
		mu.Lock()
		defer mu.Unlock()
		if stop != nil {
			stop()
			stop = nil
		}
	}
}

// startSpinner animates text in a pterm area that disappears when stopped.
func startSpinner(text string, interval time.Duration) func() {
	cursor.Hide()
	area, err := pterm.DefaultArea.WithRemoveWhenDone(true).Start()
	if err != nil {
		cursor.Show()
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			area.Update(fmt.Sprintf("%s %s", spinnerFrames[i%len(spinnerFrames)], text))
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
		_ = area.Stop()
		cursor.Show()
	}
}
