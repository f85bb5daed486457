package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/teresa-solution/directory-service/internal/apperrors"
	"github.com/teresa-solution/directory-service/internal/model"
)

var (
	v    *validator.Validate
	once sync.Once
)

// V returns the shared validator with the directory's custom rules registered.
func V() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonFieldName)
		_ = v.RegisterValidation("backend", backendValidator)
		_ = v.RegisterValidation("country", countryValidator)
	})
	return v
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

var backendRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// backendValidator accepts any well-formed backend kind; the set of backends
// is configuration driven.
func backendValidator(fl validator.FieldLevel) bool {
	return backendRegex.MatchString(fl.Field().String())
}

var countryRegex = regexp.MustCompile(`^[A-Z]{2}$`)

// countryValidator checks for an ISO-3166-1 alpha-2 code.
func countryValidator(fl validator.FieldLevel) bool {
	return countryRegex.MatchString(fl.Field().String())
}

// Struct validates s and converts failures into ErrInvalidArgument.
func Struct(s any) error {
	err := V().Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperrors.ErrInvalidArgument.Err(err)
	}
	return apperrors.ErrInvalidArgument.Msg(describe(ve))
}

func describe(ve validator.ValidationErrors) string {
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := strings.SplitN(fe.Namespace(), ".", 2)
		path := fe.Field()
		if len(field) == 2 {
			path = field[1]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", path, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", path, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}

// Country validates a tenant country code.
func Country(country string) error {
	if err := V().Var(country, "required,country"); err != nil {
		return apperrors.ErrInvalidArgument.Msg("country: expected an ISO-3166-1 alpha-2 code")
	}
	return nil
}

// extraFieldRules lists the validation rules of the string extra fields of
// the backends whose configuration the directory knows. Other backends store
// their extra fields unchecked.
var extraFieldRules = map[string]map[string]string{
	model.BackendCSV: {
		"file":      "required",
		"separator": "omitempty,len=1",
	},
	model.BackendCSVWS: {
		"lookup_url": "required,url",
		"list_url":   "omitempty,url",
		"delimiter":  "omitempty,len=1",
	},
	model.BackendLDAP: {
		"ldap_uri":     "required,uri",
		"ldap_base_dn": "required",
	},
	model.BackendHTTP: {
		"lookup_url":      "required,url",
		"list_url":        "omitempty,url",
		"first_match_url": "omitempty,url",
	},
	model.BackendSample: {},
}

// SourceBody validates a source body, including the extra fields of known
// backends. Failures are ErrInvalidSourceConfig.
func SourceBody(body model.SourceBody) error {
	if err := Struct(body); err != nil {
		return apperrors.ErrInvalidSourceConfig.MsgErr(err.Error(), err)
	}
	if body.Backend == model.BackendPhonebook && (body.PhonebookUUID == nil || *body.PhonebookUUID == "") {
		return apperrors.ErrInvalidSourceConfig.Msg("phonebook_uuid: required for phonebook sources")
	}
	rules, ok := extraFieldRules[body.Backend]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(rules))
	for k := range rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var msgs []string
	for _, field := range keys {
		value, present := body.ExtraFields[field]
		if !present {
			if slices.Contains(strings.Split(rules[field], ","), "required") {
				msgs = append(msgs, field+": required")
			}
			continue
		}
		str, isString := value.(string)
		if !isString {
			msgs = append(msgs, field+": expected a string")
			continue
		}
		if err := V().Var(str, rules[field]); err != nil {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, rules[field]))
		}
	}
	if len(msgs) > 0 {
		return apperrors.ErrInvalidSourceConfig.Msg(strings.Join(msgs, "; "))
	}
	return nil
}
