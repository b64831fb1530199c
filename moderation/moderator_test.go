package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestModerator(t *testing.T) *Moderator {
	t.Helper()
	m, err := NewModerator([]string{"scam", "lowball"}, '*')
	require.NoError(t, err)
	return m
}

func Test_Censor_Replaces_Forbidden_Words(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t)

	req.Equal("this is a ****", m.Censor("this is a scam"))
	req.Equal("no ******* offers please", m.Censor("no lowball offers please"))
}

func Test_Censor_Leaves_Clean_Text_Untouched(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t)

	clean := "happy to discuss the budget"
	req.Equal(clean, m.Censor(clean))
	req.Equal("", m.Censor(""))
}

func Test_Censor_Defeats_Leet_Speak_And_Spacing(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t)

	// Substituted characters still match the normalized pattern
	req.Equal("that is a ****", m.Censor("that is a sc4m"))
	req.Equal("that is a ****", m.Censor("that is a SCAM"))
	// The censored span covers the punctuation used to split the word
	req.Equal("pure *******", m.Censor("pure s.c.a.m"))
}

func Test_Censor_Preserves_Surrounding_Text(t *testing.T) {
	req := require.New(t)
	m := newTestModerator(t)

	req.Equal("before **** after", m.Censor("before scam after"))
}

func Test_Default_Moderator_Loads_The_Embedded_List(t *testing.T) {
	req := require.New(t)
	m, err := NewDefaultModerator('#')
	req.NoError(err)

	censored := m.Censor("definitely not a scam")
	req.NotContains(censored, "scam")
	req.Contains(censored, "####")
}
