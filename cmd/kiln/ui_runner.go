package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"kiln/internal/driver"
	"kiln/internal/ui"
)

type lowerOutcome struct {
	results []driver.Result
	err     error
}

// runLowerWithUI lowers the units while a Bubble Tea progress model
// consumes the driver's event stream.
func runLowerWithUI(ctx context.Context, title string, paths []string, opts driver.Options) ([]driver.Result, error) {
	events := make(chan driver.Event, 256)
	outcomeCh := make(chan lowerOutcome, 1)

	go func() {
		optsCopy := opts
		optsCopy.OnEvent = func(ev driver.Event) { events <- ev }
		res, err := driver.LowerPaths(ctx, optsCopy, paths)
		outcomeCh <- lowerOutcome{results: res, err: err}
		close(events)
	}()

	model := ui.NewProgressModel(title, paths, events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	outcome := <-outcomeCh
	if uiErr != nil {
		return outcome.results, uiErr
	}
	return outcome.results, outcome.err
}
