package status

import (
	"fmt"
	"time"
)

type State string

const (
	StatePending    State = "pending"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateStopped    State = "stopped"
	StateReset      State = "reset"
)

func (s State) IsValid() bool {
	switch s {
	case StatePending, StateInProgress, StateCompleted, StateFailed, StateStopped, StateReset:
		return true
	}
	return false
}

// IsTerminal reports whether no further updates are expected from the
// run that owned this status. Reset and stopped are terminal but
// restartable: a fresh run may supersede them.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateStopped, StateReset:
		return true
	}
	return false
}

// CanTransitionTo enforces the status state machine:
// pending -> in_progress -> {completed | failed | stopped | reset}.
// Any terminal state may be superseded by pending or in_progress. A
// live in_progress row cannot be taken over by another run; it must
// finish, be stopped, or be reset by the stall monitor first.
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StatePending:
		return next == StateInProgress || next == StateStopped || next == StateReset
	case StateInProgress:
		return next.IsTerminal()
	case StateCompleted, StateFailed, StateStopped, StateReset:
		return next == StatePending || next == StateInProgress
	}
	return false
}

// ProcessingStatus is the one live progress row per (user, task type).
// Updated after every batch by the single active orchestrator for that
// key; a monitor may overwrite it to reset under stall conditions.
type ProcessingStatus struct {
	UserID   string `gorm:"column:user_id;type:varchar(64);primaryKey"`
	TaskType string `gorm:"column:task_type;type:varchar(64);primaryKey"`

	State State `gorm:"column:state;type:varchar(20);not null;index"`

	Progress       int    `gorm:"column:progress;not null"`
	ProcessedItems int    `gorm:"column:processed_items;not null"`
	TotalItems     int    `gorm:"column:total_items;not null"`
	Message        string `gorm:"column:message;type:text"`
	CurrentStage   string `gorm:"column:current_stage;type:varchar(50)"`

	StartedAt    time.Time  `gorm:"column:started_at"`
	LastUpdateAt time.Time  `gorm:"column:last_update_at;index"`
	FinishedAt   *time.Time `gorm:"column:finished_at"`
}

func (ProcessingStatus) TableName() string {
	return "ops.processing_status"
}

// Transition moves the row to next, rejecting moves the state machine
// does not allow. The row is left untouched on rejection.
func (p *ProcessingStatus) Transition(next State) error {
	if !p.State.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.State, next)
	}
	p.State = next
	return nil
}

// Stalled reports whether an in-progress status has gone without an
// update for longer than threshold, as of now.
func (p *ProcessingStatus) Stalled(now time.Time, threshold time.Duration) bool {
	return p.State == StateInProgress && now.Sub(p.LastUpdateAt) > threshold
}

// Snapshot is the immutable progress view handed to progress callbacks
// after each batch.
type Snapshot struct {
	Processed int
	Total     int
	Stage     string
	Message   string
}

// Percent returns processed over total as a percentage rounded to the
// nearest whole number. Rounding can report 100 with a final partial
// batch still outstanding; the status state, not the percentage, says
// whether a run finished.
func (s Snapshot) Percent() int {
	if s.Total <= 0 {
		return 0
	}
	return int(float64(s.Processed)/float64(s.Total)*100 + 0.5)
}
