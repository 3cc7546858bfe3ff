package lts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAUTRoundTrip(t *testing.T) {
	src := `des (0,3,3)
(0,"a",1)
(1,"tau",2)
(2,"a",0)
`
	l, err := ReadAUT(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 3, l.NumStates)
	assert.Equal(t, 0, l.Initial)
	require.Len(t, l.Transitions, 3)
	assert.True(t, l.IsTau(l.Transitions[1].Label))

	var buf bytes.Buffer
	require.NoError(t, WriteAUT(&buf, l))

	l2, err := ReadAUT(strings.NewReader(buf.String()))
	require.NoError(t, err)
	assert.Equal(t, l.NumStates, l2.NumStates)
	assert.Equal(t, l.Initial, l2.Initial)
	assert.Len(t, l2.Transitions, len(l.Transitions))
}

func TestReadAUTWithoutExplicitTau(t *testing.T) {
	src := `des (0,1,2)
(0,"a",1)
`
	l, err := ReadAUT(strings.NewReader(src))
	require.NoError(t, err)
	// A synthetic, unused Tau slot must still be in range.
	assert.True(t, int(l.Tau) < l.NumLabels)
	assert.NoError(t, l.Validate())
}

func TestReadAUTRejectsMalformedHeader(t *testing.T) {
	_, err := ReadAUT(strings.NewReader("not a header\n"))
	assert.Error(t, err)
}
