package workflow

import (
	"fmt"
	"slices"

	"github.com/divs-identity/divs-agent/interfaces"
)

// Field is an identity attribute a requester can ask for.
type Field struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

var catalogue = []Field{
	{Name: "Name", Label: "Full name"},
	{Name: "DOB", Label: "Date of birth"},
	{Name: "Address", Label: "Postal address"},
	{Name: "Phone", Label: "Phone number"},
	{Name: "panNumber", Label: "PAN number"},
}

// Fields returns the selectable field catalogue.
func Fields() []Field {
	return slices.Clone(catalogue)
}

// ValidateFields checks a requested field list against the catalogue and
// drops duplicates, keeping the first occurrence.
func ValidateFields(fields []string) ([]string, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields requested", interfaces.ErrInvalidArgument)
	}

	out := make([]string, 0, len(fields))
	for _, name := range fields {
		if !slices.ContainsFunc(catalogue, func(f Field) bool { return f.Name == name }) {
			return nil, fmt.Errorf("%w: unknown field %q", interfaces.ErrInvalidArgument, name)
		}
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out, nil
}
