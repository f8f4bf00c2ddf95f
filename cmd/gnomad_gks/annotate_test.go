package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvDefault(t *testing.T) {
	t.Setenv("GNOMAD_TEST_VAR", "from-env")

	assert.Equal(t, "explicit", envDefault("explicit", "GNOMAD_TEST_VAR"), "explicit value wins over env")
	assert.Equal(t, "from-env", envDefault("", "GNOMAD_TEST_VAR"), "env fills an empty value")
	assert.Equal(t, "", envDefault("", "GNOMAD_TEST_VAR_UNSET"), "unset env leaves value empty")
}
