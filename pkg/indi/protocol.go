package indi

import (
	"encoding/xml"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

const protocolVersion = "1.7"

// Kind is the value type of a property vector.
type Kind int

const (
	NumberKind Kind = iota
	SwitchKind
	TextKind
	LightKind
	BLOBKind
)

func (k Kind) String() string {
	switch k {
	case NumberKind:
		return "number"
	case SwitchKind:
		return "switch"
	case TextKind:
		return "text"
	case LightKind:
		return "light"
	case BLOBKind:
		return "blob"
	}
	return "unknown"
}

// Vector states.
const (
	StateIdle  = "Idle"
	StateOk    = "Ok"
	StateBusy  = "Busy"
	StateAlert = "Alert"
)

// Element is one member of a property vector. Value holds the raw text as
// sent by the server.
type Element struct {
	Name  string
	Label string
	Value string
}

// Vector is an INDI property.
type Vector struct {
	Kind      Kind
	Device    string
	Name      string
	Label     string
	Group     string
	State     string
	Perm      string
	Rule      string
	Timestamp string
	Elements  []Element
}

// Element returns the element called name.
func (v *Vector) Element(name string) (Element, bool) {
	for _, e := range v.Elements {
		if e.Name == name {
			return e, true
		}
	}
	return Element{}, false
}

// Number returns the numeric value of element name.
func (v *Vector) Number(name string) (float64, bool) {
	e, ok := v.Element(name)
	if !ok {
		return 0, false
	}
	f, err := ParseNumber(e.Value)
	return f, err == nil
}

// Switch reports whether element name is On.
func (v *Vector) Switch(name string) bool {
	e, ok := v.Element(name)
	return ok && isOn(e.Value)
}

func (v *Vector) clone() *Vector {
	out := *v
	out.Elements = append([]Element(nil), v.Elements...)
	return &out
}

// update copies the values present in src into v.
func (v *Vector) update(src *Vector) {
	if src.State != "" {
		v.State = src.State
	}
	if src.Timestamp != "" {
		v.Timestamp = src.Timestamp
	}
	for _, se := range src.Elements {
		for i := range v.Elements {
			if v.Elements[i].Name == se.Name {
				v.Elements[i].Value = se.Value
			}
		}
	}
}

func isOn(value string) bool {
	return strings.TrimSpace(value) == "On"
}

// ParseNumber parses an INDI number, accepting the sexagesimal notation
// "D:M:S", "D:M" or "D M S" used for coordinates.
func ParseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.ContainsAny(s, ": ") {
		return strconv.ParseFloat(s, 64)
	}

	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == ' ' })
	if len(parts) == 0 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid sexagesimal number %q", s)
	}

	negative := strings.HasPrefix(parts[0], "-")
	var value float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid sexagesimal number %q: %w", s, err)
		}
		value += math.Abs(f) / math.Pow(60, float64(i))
	}
	if negative {
		value = -value
	}
	return value, nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// xmlMessage decodes every top level element sent by an INDI server.
type xmlMessage struct {
	XMLName   xml.Name
	Device    string       `xml:"device,attr"`
	Name      string       `xml:"name,attr"`
	Label     string       `xml:"label,attr"`
	Group     string       `xml:"group,attr"`
	State     string       `xml:"state,attr"`
	Perm      string       `xml:"perm,attr"`
	Rule      string       `xml:"rule,attr"`
	Timestamp string       `xml:"timestamp,attr"`
	Message   string       `xml:"message,attr"`
	Elements  []xmlElement `xml:",any"`
}

type xmlElement struct {
	XMLName xml.Name
	Name    string `xml:"name,attr"`
	Label   string `xml:"label,attr"`
	Value   string `xml:",chardata"`
}

// vectorKinds maps the vector tag suffix to its kind.
var vectorKinds = map[string]Kind{
	"NumberVector": NumberKind,
	"SwitchVector": SwitchKind,
	"TextVector":   TextKind,
	"LightVector":  LightKind,
	"BLOBVector":   BLOBKind,
}

// splitTag splits "defNumberVector" into ("def", NumberKind).
func splitTag(tag string) (string, Kind, bool) {
	for _, prefix := range []string{"def", "set", "new"} {
		if rest, ok := strings.CutPrefix(tag, prefix); ok {
			kind, known := vectorKinds[rest]
			return prefix, kind, known
		}
	}
	return "", 0, false
}

func (m *xmlMessage) vector(kind Kind) *Vector {
	v := &Vector{
		Kind:      kind,
		Device:    m.Device,
		Name:      m.Name,
		Label:     m.Label,
		Group:     m.Group,
		State:     m.State,
		Perm:      m.Perm,
		Rule:      m.Rule,
		Timestamp: m.Timestamp,
		Elements:  make([]Element, 0, len(m.Elements)),
	}
	for _, e := range m.Elements {
		v.Elements = append(v.Elements, Element{
			Name:  e.Name,
			Label: e.Label,
			Value: strings.TrimSpace(e.Value),
		})
	}
	return v
}

type xmlGetProperties struct {
	XMLName xml.Name `xml:"getProperties"`
	Version string   `xml:"version,attr"`
	Device  string   `xml:"device,attr,omitempty"`
	Name    string   `xml:"name,attr,omitempty"`
}

type xmlNewVector struct {
	XMLName  xml.Name
	Device   string      `xml:"device,attr"`
	Name     string      `xml:"name,attr"`
	Elements []xmlOneElm
}

type xmlOneElm struct {
	XMLName xml.Name
	Name    string `xml:"name,attr"`
	Value   string `xml:",chardata"`
}

// newVector builds a client update such as <newSwitchVector> with its
// <oneSwitch> children.
func newVector(kind Kind, device, name string, values map[string]string) xmlNewVector {
	var suffix string
	for s, k := range vectorKinds {
		if k == kind {
			suffix = strings.TrimSuffix(s, "Vector")
		}
	}

	msg := xmlNewVector{
		XMLName: xml.Name{Local: "new" + suffix + "Vector"},
		Device:  device,
		Name:    name,
	}
	for _, elm := range sortedKeys(values) {
		msg.Elements = append(msg.Elements, xmlOneElm{
			XMLName: xml.Name{Local: "one" + suffix},
			Name:    elm,
			Value:   values[elm],
		})
	}
	return msg
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
