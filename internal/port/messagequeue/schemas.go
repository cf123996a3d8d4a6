package messagequeue

// TaskEventPayload is the schema for all tasks.* messages.
type TaskEventPayload struct {
	TaskID         int64   `json:"task_id"`
	Name           string  `json:"name"`
	ElapsedSeconds int64   `json:"elapsed_seconds"`
	Running        bool    `json:"is_running"`
	Position       int     `json:"sort_position"`
	At             float64 `json:"at"` // epoch seconds
}

// TimerTickPayload is the schema for timer.tick messages.
type TimerTickPayload struct {
	Committed int     `json:"committed"`
	Running   int     `json:"running"`
	At        float64 `json:"at"`
}
