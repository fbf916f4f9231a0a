package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSnowflake(t *testing.T) {
	id, err := ParseSnowflake("123456789012345678")
	require.NoError(t, err)
	assert.Equal(t, int64(123456789012345678), id)

	_, err = ParseSnowflake("not-a-snowflake")
	assert.Error(t, err)
}

func TestMentions(t *testing.T) {
	assert.Equal(t, "<@42>", GetUserMention(42))
	assert.Equal(t, "<@&42>", GetRoleMention(42))
	assert.Equal(t, "<#42>", GetChannelMention(42))
}
