package ids

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIDsAreUniqueAndPrefixed(t *testing.T) {
	s1, s2 := NewSessionID(), NewSessionID()
	assert.NotEqual(t, s1, s2)
	assert.True(t, strings.HasPrefix(string(s1), "sess_"))

	b := NewBatchID()
	assert.True(t, strings.HasPrefix(string(b), "batch_"))

	st := NewStageID()
	assert.True(t, strings.HasPrefix(string(st), "stage_"))

	tk := NewTaskID()
	assert.True(t, strings.HasPrefix(string(tk), "task_"))
}
