package matchmaker

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names ("minTime") rather than Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NewPreference validates req and returns a normalized Preference: the userId
// is trimmed, topics and difficulties are deduplicated and sorted, and the
// input slices are copied.
// MinTime and MaxTime only need to be positive; they are not required to be ordered.
func NewPreference(req PreferenceRequest) (Preference, error) {
	p := Preference{
		UserID:       strings.TrimSpace(req.UserID),
		Topics:       normalizeSet(req.Topics),
		Difficulties: normalizeSet(req.Difficulties),
		MinTime:      req.MinTime,
		MaxTime:      req.MaxTime,
	}
	if err := p.Validate(); err != nil {
		return Preference{}, err
	}
	return p, nil
}

// Validate reports ErrInvalidPreference when p breaks a construction rule.
func (p Preference) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPreference, describe(err))
	}
	return nil
}

// Clone returns a copy that shares no slices with p.
func (p Preference) Clone() Preference {
	p.Topics = slices.Clone(p.Topics)
	p.Difficulties = slices.Clone(p.Difficulties)
	return p
}

func normalizeSet(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "min":
			parts = append(parts, fe.Field()+" must not be empty")
		case "gt":
			parts = append(parts, fe.Field()+" must be > 0")
		default:
			parts = append(parts, fe.Field()+" failed "+fe.Tag())
		}
	}
	return strings.Join(parts, "; ")
}
