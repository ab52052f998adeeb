package models

import "fmt"

// Flag is a user-assigned colour marker on a card. 0 means no flag.
type Flag int

// MaxFlag is the highest valid flag value.
const MaxFlag Flag = 7

var flagNames = [...]string{"none", "red", "orange", "green", "blue", "pink", "turquoise", "purple"}

// Valid reports whether f is within 0..MaxFlag.
func (f Flag) Valid() bool {
	return f >= 0 && f <= MaxFlag
}

func (f Flag) String() string {
	if !f.Valid() {
		return fmt.Sprintf("flag(%d)", int(f))
	}
	return flagNames[f]
}

// Flags returns every valid flag in order.
func Flags() []Flag {
	out := make([]Flag, 0, MaxFlag+1)
	for f := Flag(0); f <= MaxFlag; f++ {
		out = append(out, f)
	}
	return out
}

// Queue is a card's scheduling state.
type Queue int

// Queue states, numbered the way the host collection stores them.
const (
	QueueSuspended  Queue = -1
	QueueNew        Queue = 0
	QueueLearning   Queue = 1
	QueueReview     Queue = 2
	QueueRelearning Queue = 3
)

func (q Queue) String() string {
	switch q {
	case QueueSuspended:
		return "suspended"
	case QueueNew:
		return "new"
	case QueueLearning:
		return "learning"
	case QueueReview:
		return "review"
	case QueueRelearning:
		return "relearning"
	}
	return fmt.Sprintf("queue(%d)", int(q))
}

// Card is a schedulable review unit derived from a note.
type Card struct {
	ID     int64  `json:"id"`
	NoteID int64  `json:"note_id"`
	Deck   string `json:"deck"`
	Flag   Flag   `json:"flag"`
	Queue  Queue  `json:"queue"`
	// Type is the queue the card returns to when it is unsuspended.
	Type     Queue `json:"type"`
	Interval int   `json:"interval"`
	Due      int64 `json:"due"`
}

// Suspended reports whether the card is suspended.
func (c Card) Suspended() bool {
	return c.Queue == QueueSuspended
}

// Scheduled reports whether the card has a positive interval.
func (c Card) Scheduled() bool {
	return c.Interval > 0
}
