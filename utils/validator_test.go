package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidator(t *testing.T) {
	v := NewValidator()
	assert.True(t, v.Valid())

	v.Check(true, "name", "never recorded")
	v.Check(false, "year", "Year must be a whole number")
	v.Check(false, "name", "Movie name is required")
	v.Check(false, "name", "second message is ignored")

	assert.False(t, v.Valid())
	assert.Equal(t, map[string]string{
		"name": "Movie name is required",
		"year": "Year must be a whole number",
	}, v.Errors)
	assert.Equal(t, "Movie name is required; Year must be a whole number", v.Error())
}

func TestIn(t *testing.T) {
	assert.True(t, In("json", "json", "sqlite"))
	assert.False(t, In("mongo", "json", "sqlite"))
	assert.False(t, In("json"))
}
