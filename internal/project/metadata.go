package project

// Item holds a metadata value together with its override flag. A value stays
// stored when the override is disabled so re-enabling it restores the
// previous value instead of the schema default.
type Item struct {
	Value      any  `json:"value"`
	Overridden bool `json:"overridden"`
}

// Metadata is the per-node metadata table keyed by schema key.
type Metadata map[string]Item

// Set stores a value and marks it overridden.
func (m Metadata) Set(key string, value any) {
	m[key] = Item{Value: value, Overridden: true}
}

// SetOverridden flips the override flag without touching the stored value.
// Enabling an override for a key with no stored value is a no-op.
func (m Metadata) SetOverridden(key string, overridden bool) {
	item, ok := m[key]
	if !ok {
		return
	}
	item.Overridden = overridden
	m[key] = item
}

// Value returns the stored value regardless of the override flag.
func (m Metadata) Value(key string) (any, bool) {
	item, ok := m[key]
	if !ok {
		return nil, false
	}
	return item.Value, true
}

// IsOverridden reports whether the key is overridden at this node.
func (m Metadata) IsOverridden(key string) bool {
	return m[key].Overridden
}
