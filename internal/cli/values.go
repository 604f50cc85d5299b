package cli

import (
	"strings"

	"github.com/spf13/pflag"
)

var _ pflag.Value = &StringList{}

// StringList is a comma-separated flag value that replaces the bound slice on every Set call.
// Unlike pflag's StringSlice it can be set repeatedly without accumulating values.
type StringList struct {
	Values *[]string
}

func (l *StringList) Set(s string) error {
	items := strings.Split(s, ",")
	values := make([]string, 0, len(items))

	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			values = append(values, item)
		}
	}

	*l.Values = values

	return nil
}

func (l *StringList) String() string {
	if l.Values == nil {
		return ""
	}

	return strings.Join(*l.Values, ",")
}

func (l *StringList) Type() string {
	return "LIST"
}
