package dao

// Parameter is a named list filter.
type Parameter struct {
	Name  string
	Value interface{}
}

// StatusParameter is the parameter name used to filter requests by status.
const StatusParameter = "Status"

// NewParameter creates a parameter; a single value is stored as string,
// several values as []string.
func NewParameter(name string, values ...string) *Parameter {
	if len(values) == 1 {
		return &Parameter{Name: name, Value: values[0]}
	}
	return &Parameter{Name: name, Value: values}
}
