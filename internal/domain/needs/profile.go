// Package needs holds the patient needs profile every resolver reads.
package needs

import (
	"github.com/wolfty27/Connected-Capacity-sub005/internal/platform/expr"
)

// Profile is the flat, read-only view of a patient's needs assembled upstream
// from assessment data. Field names in JSON match the names used in rule
// conditions (e.g. "technologyReadiness >= 2").
type Profile struct {
	CognitiveComplexity       int  `json:"cognitiveComplexity"`
	FallsRiskLevel            int  `json:"fallsRiskLevel"`
	LivesAlone                bool `json:"livesAlone"`
	CaregiverStressLevel      int  `json:"caregiverStressLevel"`
	PainScore                 int  `json:"painScore"`
	TechnologyReadiness       int  `json:"technologyReadiness"`
	HasInternet               bool `json:"hasInternet"`
	ADLSupportLevel           int  `json:"adlSupportLevel"`
	IADLSupportLevel          int  `json:"iadlSupportLevel"`
	HealthInstability         int  `json:"healthInstability"`
	RequiresExtensiveServices bool `json:"requiresExtensiveServices"`
	RehabPotential            int  `json:"rehabPotential"`
	WoundCareNeeds            bool `json:"woundCareNeeds"`
	HasCaregiver              bool `json:"hasCaregiver"`

	// Extra carries any further numeric attributes referenced by rule
	// conditions without a dedicated field.
	Extra map[string]float64 `json:"extra,omitempty"`
}

// Lookup resolves a field by its condition name. Unknown names resolve to
// expr.Zero, matching the expression language's default for unset items.
func (p Profile) Lookup(name string) expr.Value {
	switch name {
	case "cognitiveComplexity":
		return intVal(p.CognitiveComplexity)
	case "fallsRiskLevel":
		return intVal(p.FallsRiskLevel)
	case "livesAlone":
		return expr.Bool(p.LivesAlone)
	case "caregiverStressLevel":
		return intVal(p.CaregiverStressLevel)
	case "painScore":
		return intVal(p.PainScore)
	case "technologyReadiness":
		return intVal(p.TechnologyReadiness)
	case "hasInternet":
		return expr.Bool(p.HasInternet)
	case "adlSupportLevel":
		return intVal(p.ADLSupportLevel)
	case "iadlSupportLevel":
		return intVal(p.IADLSupportLevel)
	case "healthInstability":
		return intVal(p.HealthInstability)
	case "requiresExtensiveServices":
		return expr.Bool(p.RequiresExtensiveServices)
	case "rehabPotential":
		return intVal(p.RehabPotential)
	case "woundCareNeeds":
		return expr.Bool(p.WoundCareNeeds)
	case "hasCaregiver":
		return expr.Bool(p.HasCaregiver)
	}
	if v, ok := p.Extra[name]; ok {
		return expr.Number(v)
	}
	return expr.Zero
}

// Vars flattens the profile into an expression context.
func (p Profile) Vars() expr.Vars {
	vs := expr.Vars{}
	for _, name := range FieldNames {
		vs[name] = p.Lookup(name)
	}
	for k, v := range p.Extra {
		if _, ok := vs[k]; !ok {
			vs[k] = expr.Number(v)
		}
	}
	return vs
}

// FieldNames lists the named profile fields in declaration order.
var FieldNames = []string{
	"cognitiveComplexity",
	"fallsRiskLevel",
	"livesAlone",
	"caregiverStressLevel",
	"painScore",
	"technologyReadiness",
	"hasInternet",
	"adlSupportLevel",
	"iadlSupportLevel",
	"healthInstability",
	"requiresExtensiveServices",
	"rehabPotential",
	"woundCareNeeds",
	"hasCaregiver",
}

// TechReady reports whether remote and technology services can be offered.
func (p Profile) TechReady() bool {
	return p.TechnologyReadiness >= 2 && p.HasInternet
}

func intVal(i int) expr.Value { return expr.Number(float64(i)) }
