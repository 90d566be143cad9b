package manifest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchema matches every *SchemaError via errors.Is.
var ErrSchema = errors.New("manifest schema error")

// SchemaError reports a structurally invalid manifest: a missing required
// column, a malformed row or an unparsable field. It is always fatal.
type SchemaError struct {
	Missing []string
	Line    int
	Row     int
	Reason  string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	b.WriteString("manifest schema error")

	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, ": missing required column(s) %s", strings.Join(e.Missing, ", "))
	}

	if e.Line > 0 {
		fmt.Fprintf(&b, ": line %d", e.Line)
	}

	if e.Row > 0 {
		fmt.Fprintf(&b, ": row %d", e.Row)
	}

	if e.Reason != "" {
		fmt.Fprintf(&b, ": %s", e.Reason)
	}

	return b.String()
}

func (e *SchemaError) Is(target error) bool { return target == ErrSchema }

// DuplicateRecordError reports two rows sharing a (speaker_id, audio_path) pair.
type DuplicateRecordError struct {
	SpeakerID string
	AudioPath string
	Rows      [2]int
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("duplicate record (%s, %s) at rows %d and %d",
		e.SpeakerID, e.AudioPath, e.Rows[0], e.Rows[1])
}
