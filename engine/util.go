package engine

import "fmt"

// sprintfDebug formats a debug line the way the teacher's debug() helper
// does, as a plain fmt.Sprintf with a trailing newline.
func sprintfDebug(format string, args ...interface{}) string {
	return fmt.Sprintf(format+"\n", args...)
}
