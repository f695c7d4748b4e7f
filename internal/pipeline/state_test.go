package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_AppendOnly(t *testing.T) {
	st := NewState()
	require.NoError(t, st.Put("draft", "one"))
	require.NoError(t, st.Put("review", "two"))

	err := st.Put("draft", "changed")
	require.ErrorIs(t, err, ErrKeyExists)

	v, ok := st.Get("draft")
	assert.True(t, ok)
	assert.Equal(t, "one", v)
	assert.Equal(t, []string{"draft", "review"}, st.Keys())
	assert.Equal(t, 2, st.Len())
	assert.Error(t, st.Put("", "x"))
}

func TestState_SnapshotAndKeysAreCopies(t *testing.T) {
	st := NewState()
	require.NoError(t, st.Put("a", "1"))

	snap := st.Snapshot()
	snap["a"] = "mutated"
	keys := st.Keys()
	keys[0] = "z"

	v, _ := st.Get("a")
	assert.Equal(t, "1", v)
	assert.Equal(t, []string{"a"}, st.Keys())
}

func TestState_Digest(t *testing.T) {
	build := func(pairs ...string) *State {
		st := NewState()
		for i := 0; i < len(pairs); i += 2 {
			require.NoError(t, st.Put(pairs[i], pairs[i+1]))
		}
		return st
	}
	a := build("draft", "x", "review", "y")
	b := build("draft", "x", "review", "y")
	assert.Equal(t, a.Digest(), b.Digest())
	assert.Len(t, a.Digest(), 64)

	assert.NotEqual(t, a.Digest(), build("review", "y", "draft", "x").Digest())
	assert.NotEqual(t, build("ab", "c").Digest(), build("a", "bc").Digest())
	assert.NotEqual(t, a.Digest(), NewState().Digest())
}

func TestNewSession_FreshRunIDs(t *testing.T) {
	a := NewSession(" courier ", "user_123")
	b := NewSession("courier", "user_123")
	assert.Equal(t, "courier", a.AppName)
	assert.Equal(t, "user_123", a.UserID)
	assert.Len(t, a.RunID, 26)
	assert.NotEqual(t, a.RunID, b.RunID)
}
