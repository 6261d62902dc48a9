package simulator

import (
	"fmt"
	"sort"

	"github.com/nerrad567/gray-logic-devicesim/internal/infrastructure/config"
)

// FieldKind selects how a payload field value is produced.
type FieldKind string

const (
	// FieldNumber draws uniformly from Baseline±Spread.
	FieldNumber FieldKind = config.FieldKindNumber
	// FieldChoice draws uniformly from Choices.
	FieldChoice FieldKind = config.FieldKindChoice
	// FieldConst always emits Value.
	FieldConst FieldKind = config.FieldKindConst
)

// FieldSpec describes one field of a generated payload.
type FieldSpec struct {
	Name      string
	Kind      FieldKind
	Baseline  float64
	Spread    float64
	Precision int
	Choices   []string
	Value     string
}

// DeviceSpec pins a named device to its own fields.
type DeviceSpec struct {
	ID     DeviceID
	Fields []FieldSpec
}

// Profile is a GenerationProfile: which fields a payload carries, their
// ranges or choice sets, and the topic template devices publish under.
//
// A profile with Devices defines a fixed fleet (the configured device count
// is ignored); otherwise numbered devices share Fields.
type Profile struct {
	Name          string
	TopicTemplate string
	Fields        []FieldSpec
	Devices       []DeviceSpec
}

// Builtin profile names.
const (
	ProfileFleet = "fleet"
	ProfileHome  = "home"
)

// builtinProfiles are expressed as configuration data so they go through the
// same validation and conversion as profiles declared in a config file.
var builtinProfiles = map[string]config.ProfileConfig{
	ProfileFleet: {
		TopicTemplate: "sim/device/{device_id}/telemetry",
		Fields: []config.FieldConfig{
			{Name: "temp", Kind: config.FieldKindNumber, Baseline: 20, Spread: 5, Precision: 2},
			{Name: "pressure", Kind: config.FieldKindNumber, Baseline: 101.3, Spread: 0.5, Precision: 2},
			{Name: "status", Kind: config.FieldKindChoice, Choices: []string{"OK", "WARN", "FAIL"}},
		},
	},
	ProfileHome: {
		TopicTemplate: "home/{device_id}/state",
		Devices: []config.DeviceProfileConfig{
			{
				ID: "sensor1",
				Fields: []config.FieldConfig{
					{Name: "type", Kind: config.FieldKindConst, Value: "temperature"},
					{Name: "value", Kind: config.FieldKindNumber, Baseline: 23, Spread: 3, Precision: 2},
				},
			},
			{
				ID: "light1",
				Fields: []config.FieldConfig{
					{Name: "type", Kind: config.FieldKindConst, Value: "light"},
					{Name: "state", Kind: config.FieldKindChoice, Choices: []string{"on", "off"}},
				},
			},
		},
	},
}

// BuiltinProfiles returns a copy of the builtin profile declarations, keyed
// by name, for config validation.
func BuiltinProfiles() map[string]config.ProfileConfig {
	out := make(map[string]config.ProfileConfig, len(builtinProfiles))
	for name, p := range builtinProfiles {
		out[name] = p
	}
	return out
}

// ProfileNames lists the builtin and file-declared profile names, sorted.
func ProfileNames(cfg *config.Config) []string {
	seen := make(map[string]bool)
	for name := range builtinProfiles {
		seen[name] = true
	}
	if cfg != nil {
		for name := range cfg.Profiles {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupProfile resolves a named profile from cfg (file-declared first, then
// builtin) and converts it.
func LookupProfile(cfg *config.Config, name string) (Profile, error) {
	pc, ok := cfg.LookupProfile(name, builtinProfiles)
	if !ok {
		return Profile{}, fmt.Errorf("%w: unknown profile %q", ErrInvalidConfig, name)
	}
	return ProfileFromConfig(name, pc), nil
}

// ProfileFromConfig converts a profile declaration. An empty field kind
// means number.
func ProfileFromConfig(name string, pc config.ProfileConfig) Profile {
	p := Profile{
		Name:          name,
		TopicTemplate: pc.TopicTemplate,
		Fields:        fieldsFromConfig(pc.Fields),
	}
	for _, d := range pc.Devices {
		p.Devices = append(p.Devices, DeviceSpec{
			ID:     DeviceID(d.ID),
			Fields: fieldsFromConfig(d.Fields),
		})
	}
	return p
}

func fieldsFromConfig(fcs []config.FieldConfig) []FieldSpec {
	if len(fcs) == 0 {
		return nil
	}
	out := make([]FieldSpec, len(fcs))
	for i, fc := range fcs {
		kind := FieldKind(fc.Kind)
		if kind == "" {
			kind = FieldNumber
		}
		out[i] = FieldSpec{
			Name:      fc.Name,
			Kind:      kind,
			Baseline:  fc.Baseline,
			Spread:    fc.Spread,
			Precision: fc.Precision,
			Choices:   append([]string(nil), fc.Choices...),
			Value:     fc.Value,
		}
	}
	return out
}

// FixedDevices reports whether the profile defines its own device set.
func (p Profile) FixedDevices() bool {
	return len(p.Devices) > 0
}

// DeviceIDs returns the devices a run publishes for, in publish order.
// Fixed profiles return their declared devices; others return 1..count.
func (p Profile) DeviceIDs(count int) []DeviceID {
	if !p.FixedDevices() {
		return NumberedDevices(count)
	}
	ids := make([]DeviceID, len(p.Devices))
	for i, d := range p.Devices {
		ids[i] = d.ID
	}
	return ids
}

// fieldsFor returns the field set for a device, falling back to the shared
// fields for devices the profile does not pin.
func (p Profile) fieldsFor(id DeviceID) []FieldSpec {
	for _, d := range p.Devices {
		if d.ID == id {
			return d.Fields
		}
	}
	return p.Fields
}
