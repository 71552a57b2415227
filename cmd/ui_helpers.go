// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"seedfast/pagedquery/internal/rowformat"
	"seedfast/pagedquery/internal/terminal"

	"atomicgo.dev/cursor"
	"github.com/pterm/pterm"
)

// spinnerFrames are braille frames similar to the docker CLI.
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// areaSpinner animates a single status line in a pterm area. Stop is safe to call
// more than once and from any goroutine.
type areaSpinner struct {
	area *pterm.AreaPrinter
	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	mu   sync.Mutex
	text string
}

// startAreaSpinner hides the cursor and starts animating text. It returns nil when
// the area cannot be started; a nil spinner's methods do nothing.
func startAreaSpinner(text string) *areaSpinner {
	cursor.Hide()
	area, err := pterm.DefaultArea.WithRemoveWhenDone(true).Start()
	if err != nil {
		cursor.Show()
		return nil
	}
	s := &areaSpinner{area: area, stop: make(chan struct{}), text: text}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		t := time.NewTicker(120 * time.Millisecond)
		defer t.Stop()
		for i := 0; ; i++ {
			select {
			case <-t.C:
				s.mu.Lock()
				line := fmt.Sprintf("%s %s", spinnerFrames[i%len(spinnerFrames)], s.text)
				s.mu.Unlock()
				area.Update(line)
			case <-s.stop:
				return
			}
		}
	}()
	return s
}

// SetText replaces the status text.
func (s *areaSpinner) SetText(text string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
}

// Stop ends the animation, removes the area and shows the cursor again.
func (s *areaSpinner) Stop() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
		_ = s.area.Stop()
		cursor.Show()
	})
}

// renderTable renders one page as a pterm table no wider than width columns.
func renderTable(labels []rowformat.Label, content [][]any, width int) (string, error) {
	cols := len(labels)
	if cols == 0 {
		return "", nil
	}
	// Three characters of separator per column.
	cellWidth := max(width/cols-3, 4)

	data := make(pterm.TableData, 0, len(content)+1)
	header := make([]string, cols)
	for i, l := range labels {
		header[i] = terminal.Truncate(l.Name, cellWidth)
	}
	data = append(data, header)
	for _, row := range content {
		line := make([]string, cols)
		for i := range line {
			if i < len(row) {
				line[i] = terminal.Truncate(cellText(row[i]), cellWidth)
			}
		}
		data = append(data, line)
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
}

// cellText renders a formatted cell for the terminal.
func cellText(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return strings.ReplaceAll(v, "\n", "⏎")
	case []any, map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}
