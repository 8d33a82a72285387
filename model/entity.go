package model

// EntityType identifies a category of personally identifiable information.
type EntityType string

const (
	EntityPerson          EntityType = "PERSON"
	EntityEmailAddress    EntityType = "EMAIL_ADDRESS"
	EntityPhoneNumber     EntityType = "PHONE_NUMBER"
	EntityCreditCard      EntityType = "CREDIT_CARD"
	EntityUSSSN           EntityType = "US_SSN"
	EntityUSDriverLicense EntityType = "US_DRIVER_LICENSE"
	EntityUSPassport      EntityType = "US_PASSPORT"
	EntityLocation        EntityType = "LOCATION"
	EntityDateTime        EntityType = "DATE_TIME"
	EntityMedicalLicense  EntityType = "MEDICAL_LICENSE"
	EntityURL             EntityType = "URL"
	EntityIPAddress       EntityType = "IP_ADDRESS"
)

// SupportedEntityTypes lists all entity types the detection engine knows about.
func SupportedEntityTypes() []EntityType {
	return []EntityType{
		EntityPerson,
		EntityEmailAddress,
		EntityPhoneNumber,
		EntityCreditCard,
		EntityUSSSN,
		EntityUSDriverLicense,
		EntityUSPassport,
		EntityLocation,
		EntityDateTime,
		EntityMedicalLicense,
		EntityURL,
		EntityIPAddress,
	}
}

// placeholders maps entity types to their replacement tags for the
// "replace" anonymization method.
var placeholders = map[EntityType]string{
	EntityPhoneNumber:     "<PHONE>",
	EntityEmailAddress:    "<EMAIL>",
	EntityPerson:          "<PERSON>",
	EntityCreditCard:      "<CREDIT_CARD>",
	EntityUSSSN:           "<SSN>",
	EntityLocation:        "<LOCATION>",
	EntityDateTime:        "<DATE>",
	EntityUSDriverLicense: "<DRIVER_LICENSE>",
	EntityUSPassport:      "<PASSPORT>",
	EntityMedicalLicense:  "<MEDICAL_LICENSE>",
	EntityURL:             "<URL>",
	EntityIPAddress:       "<IP_ADDRESS>",
}

// Placeholder returns the replacement tag for an entity type.
// Unknown types fall back to a bracketed type name.
func (t EntityType) Placeholder() string {
	if p, ok := placeholders[t]; ok {
		return p
	}
	return "<" + string(t) + ">"
}

// PIIEntity is one detected sensitive span. Records are produced during
// detection and never mutated afterwards.
type PIIEntity struct {
	Type       EntityType `json:"type"`
	Text       string     `json:"text"`
	Score      float64    `json:"score"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	SourceFile string     `json:"source_file,omitempty"`
	Page       int        `json:"source_page,omitempty"`
}

// EntityStatistics counts detected entities per type.
func EntityStatistics(entities []PIIEntity) map[EntityType]int {
	stats := make(map[EntityType]int)
	for _, entity := range entities {
		stats[entity.Type]++
	}
	return stats
}
