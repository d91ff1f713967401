package middleware

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupValidator_RegistersChannelCode(t *testing.T) {
	SetupValidator()

	v, ok := binding.Validator.Engine().(*validator.Validate)
	require.True(t, ok)

	type payload struct {
		Channel string `json:"channel" binding:"channelcode"`
	}

	assert.NoError(t, v.Struct(payload{Channel: "shopee"}))
	assert.Error(t, v.Struct(payload{Channel: "ebay"}))
}
