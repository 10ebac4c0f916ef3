package umbra3d

// Properties is an unordered set of named values carried on nodes and
// movable objects, useful for tagging objects or attaching game data.
type Properties struct {
	props map[string]any
}

// NewProperties returns a new, empty Properties set.
func NewProperties() *Properties {
	return &Properties{props: map[string]any{}}
}

// Clone returns a copy of the Properties set (values are copied shallowly).
func (props *Properties) Clone() *Properties {
	clone := NewProperties()
	for k, v := range props.props {
		clone.props[k] = v
	}
	return clone
}

// Set stores a value under the name provided.
func (props *Properties) Set(name string, value any) {
	props.props[name] = value
}

// Get returns the value stored under the name provided and whether it exists.
func (props *Properties) Get(name string) (any, bool) {
	v, ok := props.props[name]
	return v, ok
}

// Has returns whether values exist for all of the names provided.
func (props *Properties) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := props.props[n]; !ok {
			return false
		}
	}
	return true
}

// Remove deletes the value stored under the name provided.
func (props *Properties) Remove(name string) {
	delete(props.props, name)
}

// Clear removes every value from the set.
func (props *Properties) Clear() {
	props.props = map[string]any{}
}

// Count returns the number of values in the set.
func (props *Properties) Count() int {
	return len(props.props)
}

// Bool returns the value under the name provided as a bool, or the fallback
// if absent or of another type.
func (props *Properties) Bool(name string, fallback bool) bool {
	if v, ok := props.props[name].(bool); ok {
		return v
	}
	return fallback
}

// Float returns the value under the name provided as a float64, or the
// fallback if absent or of another type.
func (props *Properties) Float(name string, fallback float64) float64 {
	if v, ok := props.props[name].(float64); ok {
		return v
	}
	return fallback
}

// Int returns the value under the name provided as an int, or the fallback
// if absent or of another type.
func (props *Properties) Int(name string, fallback int) int {
	if v, ok := props.props[name].(int); ok {
		return v
	}
	return fallback
}

// String returns the value under the name provided as a string, or the
// fallback if absent or of another type.
func (props *Properties) String(name string, fallback string) string {
	if v, ok := props.props[name].(string); ok {
		return v
	}
	return fallback
}
