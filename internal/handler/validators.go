package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/runcrew/service-running/internal/domain/running"
)

// RegisterValidators adds the request tags used by the running endpoints to
// gin's validator: runningdate (YYYY-MM-DD) and runningtime (HH:MM, 24h).
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
	}
	if err := v.RegisterValidation("runningdate", layoutValidator(running.DateLayout)); err != nil {
		return fmt.Errorf("failed to register runningdate: %w", err)
	}
	if err := v.RegisterValidation("runningtime", layoutValidator(running.TimeLayout)); err != nil {
		return fmt.Errorf("failed to register runningtime: %w", err)
	}
	return nil
}

func layoutValidator(layout string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		t, err := time.Parse(layout, s)
		// Reject non-padded forms like "6:30" that time.Parse would accept.
		return err == nil && t.Format(layout) == s
	}
}
