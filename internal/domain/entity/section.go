package entity

// SectionID names one block of the generator's response.
type SectionID string

const (
	SectionModel       SectionID = "MODEL"
	SectionRepository  SectionID = "REPOSITORY"
	SectionService     SectionID = "SERVICE"
	SectionController  SectionID = "CONTROLLER"
	SectionApplication SectionID = "APPLICATION"
	SectionProperties  SectionID = "PROPERTIES"
	SectionBuild       SectionID = "BUILD"
)

// MarkerToken starts every section marker line, e.g. "//---MODEL---".
const MarkerToken = "//---"

// Sections is the closed set of identifiers in canonical order.
// No identifier is a substring of another.
var Sections = []SectionID{
	SectionModel,
	SectionRepository,
	SectionService,
	SectionController,
	SectionApplication,
	SectionProperties,
	SectionBuild,
}

var sectionDescriptions = map[SectionID]string{
	SectionModel:       "JPA entity class with Lombok annotations",
	SectionRepository:  "Spring Data JPA repository interface",
	SectionService:     "service class with create, read, update and delete operations",
	SectionController:  "REST controller exposing the CRUD endpoints",
	SectionApplication: "Spring Boot main application class",
	SectionProperties:  "application.properties for an in-memory H2 database",
	SectionBuild:       "Maven pom.xml with every dependency the project needs",
}

// Marker returns the literal marker line for id.
func (id SectionID) Marker() string {
	return MarkerToken + string(id) + "---"
}

func (id SectionID) Description() string {
	return sectionDescriptions[id]
}

// SectionSet holds at most one content value per section.
type SectionSet map[SectionID]string

// Present returns the populated sections in canonical order.
func (s SectionSet) Present() []SectionID {
	var ids []SectionID
	for _, id := range Sections {
		if _, ok := s[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// FileLayout maps sections to paths relative to the project root.
type FileLayout map[SectionID]string
