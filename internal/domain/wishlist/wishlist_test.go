package wishlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetToggleKeepsInsertionOrder(t *testing.T) {
	var s Set
	assert.True(t, s.Toggle("a"))
	assert.True(t, s.Toggle(" b "))
	assert.True(t, s.Toggle("c"))
	assert.False(t, s.Toggle("b"))
	assert.Equal(t, []string{"a", "c"}, s.IDs())
	assert.True(t, s.Toggle("b"))
	assert.Equal(t, []string{"a", "c", "b"}, s.IDs())
	assert.True(t, s.Contains(" c"))
}

func TestNewSetDropsDuplicatesAndBlanks(t *testing.T) {
	s := NewSet("x", "", "y", "x", "  ")
	assert.Equal(t, []string{"x", "y"}, s.IDs())
	assert.Equal(t, 2, s.Len())
}

func TestEncodeDecode(t *testing.T) {
	raw, err := Set{}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw))

	s, err := Decode([]byte(`["p1","p2","p1"]`))
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, s.IDs())

	empty, err := Decode(nil)
	require.NoError(t, err)
	assert.Zero(t, empty.Len())

	_, err = Decode([]byte(`{"not":"a list"}`))
	assert.Error(t, err)
}

func TestRetain(t *testing.T) {
	s := NewSet("live", "gone", "live2")
	dropped := s.Retain(func(id string) bool { return id != "gone" })
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []string{"live", "live2"}, s.IDs())
}

func TestIDsReturnsCopy(t *testing.T) {
	s := NewSet("a")
	ids := s.IDs()
	ids[0] = "mutated"
	assert.Equal(t, []string{"a"}, s.IDs())
}
