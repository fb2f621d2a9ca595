package domain

// VocabularyField names a metadata column whose distinct values form the
// known vocabulary for correction and filter validation.
type VocabularyField string

const (
	FieldClientName  VocabularyField = "TDESCCLIE"
	FieldClientCode  VocabularyField = "TCODICLIE"
	FieldGender      VocabularyField = "TTIPOGENE"
	FieldAge         VocabularyField = "TTIPOEDAD"
	FieldGarmentType VocabularyField = "TTIPOPREN"
	FieldFabricType  VocabularyField = "TTIPOTEJI"
	FieldSize        VocabularyField = "TCODITALL"
	FieldDestination VocabularyField = "TLUGADEST"
)

// VocabularyFields lists every column the vocabulary cache may be asked for.
func VocabularyFields() []VocabularyField {
	return []VocabularyField{
		FieldClientName, FieldClientCode, FieldGender, FieldAge,
		FieldGarmentType, FieldFabricType, FieldSize, FieldDestination,
	}
}

// FilterSet is the structured filter state extracted from a question.
// Every field is always present; unmentioned filters stay empty strings.
type FilterSet struct {
	Client      string `json:"client"`
	ClientStyle string `json:"clientStyle"`
	BoxNumber   string `json:"boxNumber"`
	Label       string `json:"label"`
	Size        string `json:"size"`
	Gender      string `json:"gender"`
	Age         string `json:"age"`
	GarmentType string `json:"garmentType"`
}

// Set assigns value to the named filter and reports whether the name is one
// of the known filters. Unknown names are dropped by the caller.
func (f *FilterSet) Set(name, value string) bool {
	switch name {
	case "client":
		f.Client = value
	case "clientStyle":
		f.ClientStyle = value
	case "boxNumber":
		f.BoxNumber = value
	case "label":
		f.Label = value
	case "size":
		f.Size = value
	case "gender":
		f.Gender = value
	case "age":
		f.Age = value
	case "garmentType":
		f.GarmentType = value
	default:
		return false
	}
	return true
}

// Count returns how many filters carry a value.
func (f FilterSet) Count() int {
	n := 0
	for _, v := range []string{f.Client, f.ClientStyle, f.BoxNumber, f.Label, f.Size, f.Gender, f.Age, f.GarmentType} {
		if v != "" {
			n++
		}
	}
	return n
}
