package middleware

import (
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/ecomfin/backend/internal/domain/channel"
)

// SetupValidator configures gin's validator with custom tags. Call once at
// startup before the engine serves requests.
func SetupValidator() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}

	// Use JSON (or form) tag names for field names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		}
		return name
	})

	_ = v.RegisterValidation("channelcode", validChannelCode)
}

// validChannelCode accepts the known marketplace channel codes
func validChannelCode(fl validator.FieldLevel) bool {
	return channel.Code(fl.Field().String()).IsValid()
}
