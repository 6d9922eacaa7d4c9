package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmptyConditionIsTrue(t *testing.T) {
	assert.True(t, New().Eval(NewKeySet(nil)))
	assert.True(t, New().Eval(NewKeySet([]string{"a"})))
}

func TestPresentAbsent(t *testing.T) {
	files := NewKeySet([]string{"a", "b"})

	assert.True(t, New().Present("a").Eval(files))
	assert.True(t, New().Present("a").Present("b").Eval(files))
	assert.False(t, New().Present("c").Eval(files))

	assert.True(t, New().Absent("c").Eval(files))
	assert.False(t, New().Absent("a").Eval(files))

	assert.True(t, New().Present("a").Absent("c").Eval(files))
	assert.False(t, New().Present("a").Absent("b").Eval(files))
}

func TestPresentAll(t *testing.T) {
	files := NewKeySet([]string{"a", "b", "c"})
	assert.True(t, New().PresentAll("a", "b", "c").Eval(files))
	assert.False(t, New().PresentAll("a", "d").Eval(files))
}

func TestNeg(t *testing.T) {
	files := NewKeySet([]string{"a"})

	// Negated conjunction of negated terms is disjunction.
	anyOf := New().Absent("a").Absent("b").Neg()
	assert.True(t, anyOf.Eval(files))
	assert.False(t, anyOf.Eval(NewKeySet(nil)))

	// Double negation cancels.
	assert.True(t, New().Present("a").Neg().Neg().Eval(files))
}

func TestJoint(t *testing.T) {
	files := NewKeySet([]string{"a", "b"})

	assert.True(t, And(New().Present("a"), New().Present("b")).Eval(files))
	assert.False(t, And(New().Present("a"), New().Present("c")).Eval(files))
	assert.True(t, And().Eval(files))
	assert.False(t, And(New().Present("a")).Add(New().Absent("b")).Eval(files))
}

func TestKeySetContains(t *testing.T) {
	files := NewKeySet([]string{"a"})
	assert.True(t, files.Contains("a"))
	assert.False(t, files.Contains("b"))
}
