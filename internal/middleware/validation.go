package middleware

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	v10 "github.com/go-playground/validator/v10"

	"github.com/jwalitptl/physio-api/pkg/validator"
)

var setupOnce sync.Once

// SetupValidation makes gin's binding validator report json field names and
// know the custom rules.
func SetupValidation() {
	setupOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*v10.Validate); ok {
			validator.Configure(v)
		}
	})
}
