package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"tutor-ledger/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var currencyCodeRe = regexp.MustCompile(`^[A-Za-z]{3}$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("payout_status", validatePayoutStatus)
		_ = v.RegisterValidation("currency_code", validateCurrencyCode)
	}
}

// validatePayoutStatus accepts the statuses an operator may set. Pending is
// the initial state and cannot be set by hand.
func validatePayoutStatus(fl validator.FieldLevel) bool {
	switch domain.PayoutStatus(fl.Field().String()) {
	case domain.PayoutStatusProcessing, domain.PayoutStatusApproved,
		domain.PayoutStatusRejected, domain.PayoutStatusCompleted:
		return true
	}
	return false
}

// validateCurrencyCode accepts three ASCII letters in any case.
func validateCurrencyCode(fl validator.FieldLevel) bool {
	return currencyCodeRe.MatchString(fl.Field().String())
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
