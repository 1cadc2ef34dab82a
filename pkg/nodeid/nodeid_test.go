package nodeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		kind Kind
		in   string
		id   string
	}{
		{name: "task", kind: KindTask, in: "train model", id: "task_train model"},
		{name: "input", kind: KindInput, in: "learning_rate", id: "input_learning_rate"},
		{name: "output", kind: KindOutput, in: "model", id: "output_model"},
		{name: "flex", kind: KindFlex, in: "note-1", id: "flex_note-1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id := tc.kind.ID(tc.in)
			assert.Equal(t, tc.id, id)

			kind, name, err := Parse(id)
			require.NoError(t, err)
			assert.Equal(t, tc.kind, kind)
			assert.Equal(t, tc.in, name)
		})
	}
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "task_a", TaskID("a"))
	assert.Equal(t, "input_a", InputID("a"))
	assert.Equal(t, "output_a", OutputID("a"))
	assert.Equal(t, "flex_a", FlexID("a"))
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name string
		id   string
	}{
		{name: "no separator", id: "task"},
		{name: "unknown kind", id: "edge_a"},
		{name: "empty name", id: "task_"},
		{name: "empty", id: ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Parse(tc.id)
			assert.Error(t, err)
		})
	}
}
