package resource

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Ref identifies one concrete resource to inspect. A Ref is a value: its
// extra arguments are copied on construction and only exposed by accessor.
type Ref struct {
	Kind Kind
	Name string
	args map[string]string
}

// NewRef builds a Ref, copying args so later changes by the caller do not
// leak into it.
func NewRef(kind Kind, name string, args map[string]string) Ref {
	r := Ref{Kind: kind, Name: name}
	if len(args) > 0 {
		r.args = make(map[string]string, len(args))
		for k, v := range args {
			r.args[k] = v
		}
	}
	return r
}

// Arg returns an extra identifying argument.
func (r Ref) Arg(name string) (string, bool) {
	v, ok := r.args[name]
	return v, ok
}

// Args returns a copy of the extra identifying arguments.
func (r Ref) Args() map[string]string {
	out := make(map[string]string, len(r.args))
	for k, v := range r.args {
		out[k] = v
	}
	return out
}

// String renders the ref as kind[name].
func (r Ref) String() string {
	return fmt.Sprintf("%s[%s]", r.Kind, r.Name)
}

// Key is a stable identity including extra arguments, e.g.
// "mount[/data]device=/dev/sdb1". Used for storage and de-duplication.
func (r Ref) Key() string {
	if len(r.args) == 0 {
		return r.String()
	}
	keys := make([]string, 0, len(r.args))
	for k := range r.args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(r.String())
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(r.args[k])
	}
	return b.String()
}

// Equal compares kind, name and extra arguments.
func (r Ref) Equal(o Ref) bool {
	return r.Key() == o.Key()
}

type refJSON struct {
	Kind Kind              `json:"kind"`
	Name string            `json:"name"`
	Args map[string]string `json:"args,omitempty"`
}

func (r Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(refJSON{Kind: r.Kind, Name: r.Name, Args: r.args})
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	var raw refJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = NewRef(raw.Kind, raw.Name, raw.Args)
	return nil
}
