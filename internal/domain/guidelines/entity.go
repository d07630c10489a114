package guidelines

import "errors"

// Key is one field of the rubric. The set is closed.
type Key string

const (
	RegulatoryCompliance Key = "regulatory_compliance"
	BrandIdentity        Key = "brand_identity"
	DrugBrief            Key = "drug_brief"
	MedicalScientific    Key = "medical_scientific"
	TechnicalSpecs       Key = "technical_specs"
	Accessibility        Key = "accessibility"
	AudienceGuidelines   Key = "audience_guidelines"
	OtherGuidelines      Key = "other_guidelines"
	Purpose              Key = "purpose"
	PurposeOfImage       Key = "purpose_of_image"
	FinalPrompt          Key = "final_prompt"
)

// Namespace is the fixed storage namespace for persisted rubric snapshots.
const Namespace = "imageGenGuidelines"

var ErrUnknownKey = errors.New("unknown guideline key")

// Keys returns every key in display order.
func Keys() []Key {
	return []Key{
		RegulatoryCompliance, BrandIdentity,
		DrugBrief, MedicalScientific, TechnicalSpecs,
		Accessibility, AudienceGuidelines, OtherGuidelines,
		Purpose,
		PurposeOfImage, FinalPrompt,
	}
}

var labels = map[Key]string{
	RegulatoryCompliance: "Regulatory Compliance",
	BrandIdentity:        "Brand Identity",
	DrugBrief:            "Drug Brief",
	MedicalScientific:    "Medical & Scientific",
	TechnicalSpecs:       "Technical Specifications",
	Accessibility:        "Accessibility",
	AudienceGuidelines:   "Audience Guidelines",
	OtherGuidelines:      "Other Guidelines",
	Purpose:              "Purpose",
	PurposeOfImage:       "Purpose of Image",
	FinalPrompt:          "Final Prompt",
}

// Valid reports whether k belongs to the closed set.
func (k Key) Valid() bool {
	_, ok := labels[k]
	return ok
}

func (k Key) Label() string {
	if l, ok := labels[k]; ok {
		return l
	}
	return string(k)
}

// Assessable reports whether k can be scored by the analyzer.
// Scratch fields are editor state, not guidelines.
func (k Key) Assessable() bool {
	return k.Valid() && k != PurposeOfImage && k != FinalPrompt
}

// DefaultCategories are the compliance categories scored when a request names none.
func DefaultCategories() []Key {
	return []Key{
		RegulatoryCompliance, BrandIdentity,
		DrugBrief, MedicalScientific, TechnicalSpecs,
		Accessibility, AudienceGuidelines,
	}
}

// Group is a tab of the guideline editor.
type Group struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

type Field struct {
	Key   Key    `json:"key"`
	Label string `json:"label"`
}

func Groups() []Group {
	mk := func(name string, keys ...Key) Group {
		g := Group{Name: name}
		for _, k := range keys {
			g.Fields = append(g.Fields, Field{Key: k, Label: k.Label()})
		}
		return g
	}
	return []Group{
		mk("Company Details", RegulatoryCompliance, BrandIdentity),
		mk("Drug/Product Details", DrugBrief, MedicalScientific, TechnicalSpecs),
		mk("Audience & Campaign", Accessibility, AudienceGuidelines, OtherGuidelines),
		mk("Quick Access", Purpose),
		mk("Prompt Builder", PurposeOfImage, FinalPrompt),
	}
}

// Rubric maps every key of the closed set to its text.
type Rubric map[Key]string

// Normalize returns a copy holding exactly the closed set of keys.
// Missing keys are taken from base, unknown keys are dropped.
func (r Rubric) Normalize(base Rubric) Rubric {
	out := make(Rubric, len(labels))
	for _, k := range Keys() {
		if v, ok := r[k]; ok {
			out[k] = v
			continue
		}
		out[k] = base[k]
	}
	return out
}

func (r Rubric) Clone() Rubric {
	out := make(Rubric, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Complete reports whether every key of the closed set is present.
func (r Rubric) Complete() bool {
	for _, k := range Keys() {
		if _, ok := r[k]; !ok {
			return false
		}
	}
	return len(r) == len(labels)
}
