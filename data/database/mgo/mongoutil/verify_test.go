package mongoutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialchat/tools/errs"
)

func TestValidateAndSetDefaults(t *testing.T) {
	c := &Config{Uri: "mongodb://localhost:27017", Database: "chat", Username: "svc"}
	require.NoError(t, c.ValidateAndSetDefaults())
	assert.Equal(t, defaultMaxPoolSize, c.MaxPoolSize)
	assert.Equal(t, defaultMaxRetry, c.MaxRetry)
	assert.Equal(t, "chat", c.AuthSource)

	err := (&Config{Database: "chat"}).ValidateAndSetDefaults()
	assert.Equal(t, errs.ValidationError, errs.Code(err))

	err = (&Config{Address: []string{"localhost:27017"}}).ValidateAndSetDefaults()
	assert.Equal(t, errs.ValidationError, errs.Code(err))
}

func TestApplyConfigPrefersURI(t *testing.T) {
	c := &Config{Uri: "mongodb://db:27017", Address: []string{"other:1"}, Database: "chat"}
	require.NoError(t, c.ValidateAndSetDefaults())
	opts := applyConfigToOptions(c)
	assert.Equal(t, []string{"db:27017"}, opts.Hosts)
	assert.Nil(t, opts.Auth)
}
