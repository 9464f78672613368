// Package script holds screen scripts: the timed tap sequences that
// navigate from app launch to a target screen.
package script

import (
	"fmt"
	"time"

	"github.com/devicelab-dev/smoke-runner/pkg/core"
)

// TapAction is "tap here, then wait Delay before the next action".
type TapAction struct {
	Point core.Point    `json:"point"`
	Delay time.Duration `json:"delay"`

	// CheckLogs requests a crash scan after this action's delay. The last
	// action of a script is always checked.
	CheckLogs bool `json:"checkLogs,omitempty"`

	// CaptureBefore, when set, is a screenshot suffix captured right
	// before this tap (e.g. "_map").
	CaptureBefore string `json:"captureBefore,omitempty"`
}

// String formats the action for logs.
func (a TapAction) String() string {
	return fmt.Sprintf("tap(%d,%d)+%dms", a.Point.X, a.Point.Y, a.Delay.Milliseconds())
}

// Script is the ordered, non-empty action list of one screen.
type Script struct {
	screenID string
	actions  []TapAction
}

// New builds a script. It copies actions so later changes to the caller's
// slice cannot leak in.
func New(screenID string, actions ...TapAction) (Script, error) {
	if screenID == "" {
		return Script{}, fmt.Errorf("script: empty screen id")
	}
	if len(actions) == 0 {
		return Script{}, fmt.Errorf("script %s: no actions", screenID)
	}
	for i, a := range actions {
		if a.Delay < 0 {
			return Script{}, fmt.Errorf("script %s: action %d has negative delay", screenID, i)
		}
		if a.Point.X < 0 || a.Point.Y < 0 {
			return Script{}, fmt.Errorf("script %s: action %d has negative coordinates", screenID, i)
		}
	}
	return Script{screenID: screenID, actions: append([]TapAction(nil), actions...)}, nil
}

// ScreenID returns the screen the script navigates to.
func (s Script) ScreenID() string { return s.screenID }

// Len returns the number of actions.
func (s Script) Len() int { return len(s.actions) }

// Actions returns a copy of the actions in order.
func (s Script) Actions() []TapAction {
	return append([]TapAction(nil), s.actions...)
}

// Table maps screen ids to scripts, iterating in insertion order.
// A Table is built once per device and must not be shared across devices.
type Table struct {
	order   []string
	scripts map[string]Script
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{scripts: make(map[string]Script)}
}

// Put adds a script. Adding a screen twice is an error: order is part of
// the table's meaning and silent replacement would hide it.
func (t *Table) Put(s Script) error {
	if _, ok := t.scripts[s.screenID]; ok {
		return fmt.Errorf("script table: duplicate screen %q", s.screenID)
	}
	t.order = append(t.order, s.screenID)
	t.scripts[s.screenID] = s
	return nil
}

// Get returns the script of a screen.
func (t *Table) Get(screenID string) (Script, bool) {
	s, ok := t.scripts[screenID]
	return s, ok
}

// Len returns the number of screens.
func (t *Table) Len() int { return len(t.order) }

// ScreenIDs returns the screen ids in insertion order.
func (t *Table) ScreenIDs() []string {
	return append([]string(nil), t.order...)
}

// Scripts returns the scripts in insertion order.
func (t *Table) Scripts() []Script {
	out := make([]Script, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.scripts[id])
	}
	return out
}
