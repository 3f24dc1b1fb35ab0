// Package models defines the patient profile consumed by the retriever and composer.
package models

import "strings"

// FieldNotSpecified is the placeholder returned for missing profile fields.
const FieldNotSpecified = "NON_SPECIFICATO"

// Profile is a structured patient record consumed read-only.
// Optional fields may be empty; consumers treat them as absent context.
type Profile struct {
	Name               string `json:"name,omitempty"`
	Age                string `json:"age,omitempty"`
	Gender             string `json:"gender,omitempty"`
	MainCondition      string `json:"main_condition,omitempty"`
	HealthConditions   string `json:"health_conditions,omitempty"`
	CommunicationNeeds string `json:"communication_needs,omitempty"`
	LivingSituation    string `json:"living_situation,omitempty"`
	Routine            string `json:"routine,omitempty"`
	Goals              string `json:"goals,omitempty"`
}

// SafeField returns the value or FieldNotSpecified when missing/blank.
func SafeField(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return FieldNotSpecified
	}
	return v
}

// IsEmpty reports whether no field carries content.
func (p Profile) IsEmpty() bool {
	fields := []string{
		p.Name, p.Age, p.Gender, p.MainCondition, p.HealthConditions,
		p.CommunicationNeeds, p.LivingSituation, p.Routine, p.Goals,
	}
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// ProfileChunk is one semantically coherent slice of a profile, owned by
// the retriever together with its embedding vector.
type ProfileChunk struct {
	ID      string    `json:"id"`
	Section string    `json:"section"`
	Text    string    `json:"text"`
	Vector  []float64 `json:"vector,omitempty"`
}
