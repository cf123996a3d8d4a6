package messagequeue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var taskSubjects = map[string]bool{
	SubjectTaskAdded:   true,
	SubjectTaskStarted: true,
	SubjectTaskStopped: true,
	SubjectTaskReset:   true,
	SubjectTaskMoved:   true,
	SubjectTaskDeleted: true,
}

// Validate checks data against the payload schema for subject. Subjects
// outside the tasks.* and timer.* namespaces pass unchecked.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	switch {
	case subject == SubjectTimerTick:
		var p TimerTickPayload
		if err := decodeStrict(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if p.Committed < 0 || p.Committed > p.Running {
			return fmt.Errorf("schema validation failed for %s: committed %d outside [0, running=%d]", subject, p.Committed, p.Running)
		}
	case taskSubjects[subject]:
		var p TaskEventPayload
		if err := decodeStrict(data, &p); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if p.TaskID < 1 {
			return fmt.Errorf("schema validation failed for %s: task_id must be positive", subject)
		}
		if p.ElapsedSeconds < 0 {
			return fmt.Errorf("schema validation failed for %s: elapsed_seconds is negative", subject)
		}
	case strings.HasPrefix(subject, "tasks.") || strings.HasPrefix(subject, "timer."):
		return fmt.Errorf("unknown subject %s", subject)
	}
	return nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}
