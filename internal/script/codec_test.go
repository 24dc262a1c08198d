package script

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	tree := NewTree()
	moveID, _ := tree.AddCommand(KindMove, Params{"x": 10.5, "y": 64.0, "z": -3.0})
	repeatID, _ := tree.AddCommand(KindRepeat, Params{"times": 3.0})
	sayID, _ := tree.AddChild(repeatID, KindSay, Params{"message": "mining"})
	waitID, _ := tree.AddChild(repeatID, KindWait, Params{"milliseconds": 250.0})

	data, err := Marshal(tree)
	require.NoError(t, err)

	restored, err := Unmarshal(data)
	require.NoError(t, err)

	require.Equal(t, tree.Len(), restored.Len())

	exported := restored.Export()
	require.Len(t, exported, 2)
	assert.Equal(t, moveID, exported[0].ID)
	assert.Equal(t, KindMove, exported[0].Type)
	assert.Equal(t, 10.5, exported[0].Params["x"])

	repeat := exported[1]
	assert.Equal(t, repeatID, repeat.ID)
	require.Len(t, repeat.Children, 2)
	assert.Equal(t, sayID, repeat.Children[0].ID)
	assert.Equal(t, "mining", repeat.Children[0].Params["message"])
	assert.Equal(t, waitID, repeat.Children[1].ID)
}

func TestUnmarshalRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{{{"},
		{"object not array", `{"id":"a","type":"say"}`},
		{"scalar", `42`},
		{"null", `null`},
		{"unknown kind", `[{"id":"a","type":"levitate"}]`},
		{"duplicate id", `[{"id":"a","type":"wait"},{"id":"a","type":"wait"}]`},
		{"children on leaf", `[{"id":"a","type":"say","children":[{"id":"b","type":"wait"}]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidFormat)
		})
	}
}

func TestUnmarshalEmptyScript(t *testing.T) {
	tree, err := Unmarshal([]byte(`[]`))
	require.NoError(t, err)
	assert.Equal(t, 0, tree.Len())
}
