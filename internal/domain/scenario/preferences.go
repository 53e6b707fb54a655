package scenario

// Preferences are an axis's substitution flags for one category.
type Preferences struct {
	PreferInPerson    bool `yaml:"prefer_in_person" json:"prefer_in_person,omitempty"`
	PreferRemote      bool `yaml:"prefer_remote" json:"prefer_remote,omitempty"`
	MaximizeTech      bool `yaml:"maximize_tech" json:"maximize_tech,omitempty"`
	PreferSpecialized bool `yaml:"prefer_specialized" json:"prefer_specialized,omitempty"`
	SafetyChecks      bool `yaml:"safety_checks" json:"safety_checks,omitempty"`
	Respite           bool `yaml:"respite" json:"respite,omitempty"`
	DayProgram        bool `yaml:"day_program" json:"day_program,omitempty"`
}

// Service codes each preference flag speaks for.
var (
	remoteCodes      = []string{"RPM", "TEL", "VNV"}
	techCodes        = []string{"RPM", "TEL", "VNV", "PERS", "MED", "SMH"}
	specializedCodes = []string{"BSO", "SLP", "RT", "DIET", "SW"}
	safetyCodes      = []string{"SEC", "PERS", "SMH"}
	respiteCodes     = []string{"RES", "ADP"}
	dayProgramCodes  = []string{"ADP"}
)

// Endorses reports whether a substitution onto code is acceptable.
// prefer_in_person vetoes the remote codes. Each other flag that is set
// whitelists its codes, and a code on none of the set lists is vetoed. With
// no flag set every code is acceptable.
func (p Preferences) Endorses(code string) bool {
	if p.PreferInPerson && contains(remoteCodes, code) {
		return false
	}
	if !p.whitelists() {
		return true
	}
	return p.Favours(code)
}

// Favours reports whether a set flag whitelists code.
func (p Preferences) Favours(code string) bool {
	return (p.PreferRemote && contains(remoteCodes, code)) ||
		(p.MaximizeTech && contains(techCodes, code)) ||
		(p.PreferSpecialized && contains(specializedCodes, code)) ||
		(p.SafetyChecks && contains(safetyCodes, code)) ||
		(p.Respite && contains(respiteCodes, code)) ||
		(p.DayProgram && contains(dayProgramCodes, code))
}

func (p Preferences) whitelists() bool {
	return p.PreferRemote || p.MaximizeTech || p.PreferSpecialized ||
		p.SafetyChecks || p.Respite || p.DayProgram
}
