package framework

import "maps"

// Descriptor is the component metadata reported for an element.
type Descriptor struct {
	Framework            string         `json:"framework"`
	ComponentName        string         `json:"componentName"`
	FilePath             string         `json:"filePath,omitempty"`
	Props                map[string]any `json:"props"`
	State                map[string]any `json:"state"`
	ParentComponentName  string         `json:"parentComponentName,omitempty"`
	ComponentRootElement string         `json:"componentRootElement"`
}

// Clone returns a deep copy of d.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	c := *d
	c.Props = cloneMap(d.Props)
	c.State = cloneMap(d.State)
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := maps.Clone(m)
	for k, v := range out {
		switch t := v.(type) {
		case map[string]any:
			out[k] = cloneMap(t)
		case []any:
			cp := make([]any, len(t))
			copy(cp, t)
			out[k] = cp
		}
	}
	return out
}
