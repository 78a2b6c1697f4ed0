package state

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maksimkurb/netstate/src/internal/errors"
)

const maxIfNameLen = 15

var validate *validator.Validate

func init() {
	validate = validator.New()

	if err := validate.RegisterValidation("ifname", validateIfName); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("ifname_or_empty", validateIfNameOrEmpty); err != nil {
		panic(err)
	}

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// IsValidIfName reports whether s is a valid kernel interface name.
func IsValidIfName(s string) bool {
	if s == "" || len(s) > maxIfNameLen || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, "/: \t\n")
}

func validateIfName(fl validator.FieldLevel) bool {
	return IsValidIfName(fl.Field().String())
}

func validateIfNameOrEmpty(fl validator.FieldLevel) bool {
	v := fl.Field().String()
	return v == "" || IsValidIfName(v)
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field is required"
	case "ifname", "ifname_or_empty":
		return fmt.Sprintf("%q is not a valid interface name", e.Value())
	case "ip":
		return fmt.Sprintf("%q is not a valid IP address", e.Value())
	case "cidr":
		return fmt.Sprintf("%q is not a valid prefix", e.Value())
	case "mac":
		return fmt.Sprintf("%q is not a valid MAC address", e.Value())
	case "min":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "max":
		return fmt.Sprintf("must be <= %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "hostname_rfc1123":
		return fmt.Sprintf("%q is not a valid domain", e.Value())
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// Validate checks field syntax, identifier uniqueness and the consistency of
// type-specific configuration. It returns an InvalidArgument error.
func (s *NetworkState) Validate() error {
	var problems []string

	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			for _, e := range verrs {
				path := e.Namespace()
				if idx := strings.Index(path, "."); idx >= 0 {
					path = path[idx+1:]
				}
				problems = append(problems, fmt.Sprintf("%s: %s", path, validationMessage(e)))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	for _, kind := range SupportedKinds {
		seen := make(map[string]bool)
		for _, e := range s.Entities(kind) {
			id := e.EntityID()
			if seen[id] {
				problems = append(problems, fmt.Sprintf("%s: duplicate identifier %q", kind, id))
			}
			seen[id] = true
		}
	}

	for _, i := range s.Interfaces {
		problems = append(problems, i.typeProblems()...)
	}

	if len(problems) > 0 {
		return errors.NewInvalidArgument("invalid state document: "+strings.Join(problems, "; "), nil)
	}
	return nil
}

func (i *Interface) typeProblems() []string {
	var problems []string
	sections := []struct {
		name    string
		present bool
		want    InterfaceType
	}{
		{"bridge", i.Bridge != nil, TypeBridge},
		{"link-aggregation", i.Bond != nil, TypeBond},
		{"vlan", i.VLAN != nil, TypeVLAN},
		{"veth", i.Veth != nil, TypeVeth},
	}
	for _, sec := range sections {
		if sec.present && i.Type != "" && i.Type != sec.want {
			problems = append(problems, fmt.Sprintf("interface %s: %s section requires type %s, got %s", i.Name, sec.name, sec.want, i.Type))
		}
	}
	if i.Controller != nil && *i.Controller == i.Name {
		problems = append(problems, fmt.Sprintf("interface %s: cannot be its own controller", i.Name))
	}
	for _, p := range i.PortNames() {
		if p == i.Name {
			problems = append(problems, fmt.Sprintf("interface %s: cannot be its own port", i.Name))
		}
	}
	if i.Veth != nil && i.Veth.Peer == i.Name {
		problems = append(problems, fmt.Sprintf("interface %s: cannot be its own veth peer", i.Name))
	}
	return problems
}
