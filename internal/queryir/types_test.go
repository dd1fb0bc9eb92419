package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSealedInterface verifies every node type implements Predicate.
func TestSealedInterface(t *testing.T) {
	var _ Predicate = True{}
	var _ Predicate = Equals{}
	var _ Predicate = And{}
	var _ Predicate = Or{}
	var _ Predicate = Bind{}
	var _ Predicate = Identity{}
}

func TestParseField(t *testing.T) {
	assert.Equal(t, Field{Name: "id", Attr: true}, ParseField("$id"))
	assert.Equal(t, Field{Name: "foo"}, ParseField("foo"))
	assert.Equal(t, "$id", ParseField("$id").String())
}

func TestParseMatchMode(t *testing.T) {
	m, err := ParseMatchMode("")
	require.NoError(t, err)
	assert.Equal(t, MatchAll, m)

	m, err = ParseMatchMode("ANY")
	require.NoError(t, err)
	assert.Equal(t, MatchAny, m)

	_, err = ParseMatchMode("some")
	require.Error(t, err)
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("-$createdAt")
	require.NoError(t, err)
	assert.Equal(t, OrderBy{Field: Field{Name: "createdAt", Attr: true}, Desc: true}, o)

	o, err = ParseOrder("foo")
	require.NoError(t, err)
	assert.Equal(t, OrderBy{Field: Field{Name: "foo"}}, o)

	_, err = ParseOrder("-")
	require.Error(t, err)
}
