package main

import (
	"fmt"

	"github.com/anyos-project/anytoolchain/pkg/buildgraph"
	"github.com/anyos-project/anytoolchain/pkg/executor"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// runWithTUI drives the same executor.Run loop but renders rule state
// transitions live in a tview.List instead of the plain-text summary
// (SPEC_FULL.md §4.1 expansion, "Live graph view"). It never affects
// scheduling order or the final exit status.
func runWithTUI(g *buildgraph.Graph, targets []string, opts executor.Options) error {
	app := tview.NewApplication()
	list := tview.NewList().ShowSecondaryText(false)
	list.SetBorder(true).SetTitle(" amake: build graph ")
	app.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Rune() == 'q' || ev.Key() == tcell.KeyCtrlC {
			app.Stop()
			return nil
		}
		return ev
	})

	rows := make(map[buildgraph.RuleID]int)
	for _, id := range g.AllRules() {
		r := g.Rule(id)
		if r.State != buildgraph.StateDirty {
			continue
		}
		rows[id] = list.GetItemCount()
		list.AddItem(label(r, r.State), "", 0, nil)
	}

	opts.OnTransition = func(id buildgraph.RuleID, state buildgraph.RuleState) {
		app.QueueUpdateDraw(func() {
			idx, ok := rows[id]
			if !ok {
				return
			}
			r := g.Rule(id)
			list.SetItemText(idx, label(r, state), "")
		})
	}

	var runErr error
	go func() {
		runErr = executor.Run(g, targets, opts)
		app.QueueUpdateDraw(func() {})
		app.Stop()
	}()

	if err := app.SetRoot(list, true).Run(); err != nil {
		return err
	}
	return runErr
}

func label(r *buildgraph.Rule, state buildgraph.RuleState) string {
	color := "white"
	switch state {
	case buildgraph.StateBuilding:
		color = "yellow"
	case buildgraph.StateDone:
		color = "green"
	case buildgraph.StateFailed:
		color = "red"
	case buildgraph.StateDirty:
		color = "gray"
	}
	return fmt.Sprintf("[%s]%-8s[white] %v", color, state, r.Outputs)
}
