package main

import (
	"io"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/labtest/pkg/runner"
)

func getProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("examples"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionClearOnFinish(),
	)
}

// progressFunc drives bar from runner progress callbacks.
func progressFunc(bar *progressbar.ProgressBar) runner.ProgressFunc {
	return func(done, total int) {
		_ = bar.Set(done)
		if done == total {
			_ = bar.Finish()
		}
	}
}
