// internal/ui/msg.go
package ui

import (
	"time"

	"github.com/rovshanmuradov/solana-launchpad/internal/portfolio"
)

// RefreshDoneMsg - итог цикла обнаружения.
type RefreshDoneMsg struct {
	Snapshot portfolio.Snapshot
	Err      error
}

// LookupDoneMsg - итог ручного поиска по mint.
type LookupDoneMsg struct {
	Record portfolio.TokenRecord
	Added  bool
	Err    error
}

// phaseTickMsg опрашивает стадию, пока идёт обновление.
type phaseTickMsg time.Time

// StatusKind - вид сообщения в строке статуса.
type StatusKind int

const (
	StatusInfo StatusKind = iota
	StatusSuccess
	StatusError
)

// clearStatusMsg гасит сообщение с номером id, если оно ещё показано.
type clearStatusMsg struct{ id int }
