// Copyright 2025 The Pkgsmith Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/cheggaaa/pb"
	"github.com/fatih/color"

	"github.com/pkgsmith/pkgsmith/pkg/install"
)

// showProgress consumes pipeline events, rendering one progress bar tick per
// completed stage. The returned channel closes once the pipeline has closed
// its event channel and every event has been drained.
func showProgress(total int, events <-chan install.Event) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		bar := pb.New(total)
		bar.ShowTimeLeft = false
		bar.Start()
		for ev := range events {
			switch ev.Kind {
			case install.EnterStage:
				fmt.Println(color.BlueString(">> %s", ev.Stage))
			case install.ExitStage:
				bar.Increment()
			case install.Message:
				fmt.Println(color.WhiteString("%s", ev.Text))
			}
		}
		bar.Finish()
	}()
	return done
}
