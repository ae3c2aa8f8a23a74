package entity

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var entityNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Schema describes the entity a CRUD project is generated for.
// Fields are opaque descriptors ("title", "price: BigDecimal", ...) and are
// forwarded to the generator as written.
type Schema struct {
	ID         string      `json:"id" bson:"id"`
	EntityName string      `json:"entity_name" bson:"entity_name"`
	BasePath   string      `json:"base_path,omitempty" bson:"base_path,omitempty"`
	Fields     []string    `json:"fields" bson:"fields"`
	Endpoints  []*Endpoint `json:"endpoints,omitempty" bson:"endpoints,omitempty"`
	CreatedAt  time.Time   `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" bson:"updated_at"`
}

// Endpoint is an extra route declared on a schema. SchemaID points back to
// the owning schema and is maintained by AddEndpoint/RemoveEndpoint.
type Endpoint struct {
	Method       string `json:"method" bson:"method"`
	Path         string `json:"path" bson:"path"`
	ResponseBody string `json:"response_body,omitempty" bson:"response_body,omitempty"`
	SchemaID     string `json:"schema_id,omitempty" bson:"schema_id,omitempty"`
}

func NewSchema(entityName, basePath string, fields []string) *Schema {
	now := time.Now().UTC()
	return &Schema{
		ID:         uuid.NewString(),
		EntityName: entityName,
		BasePath:   basePath,
		Fields:     append([]string(nil), fields...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate checks the only invariant the pipeline relies on: the entity name
// is an identifier, so it can be embedded in file paths and class names.
func (s Schema) Validate() error {
	if s.EntityName == "" {
		return fmt.Errorf("%w: entity name is required", ErrInvalidSchema)
	}
	if !entityNamePattern.MatchString(s.EntityName) {
		return fmt.Errorf("%w: entity name %q is not an identifier", ErrInvalidSchema, s.EntityName)
	}
	return nil
}

func (s *Schema) AddEndpoint(e *Endpoint) {
	if e == nil {
		return
	}
	e.SchemaID = s.ID
	s.Endpoints = append(s.Endpoints, e)
}

// RemoveEndpoint detaches e and reports whether it was owned by s.
func (s *Schema) RemoveEndpoint(e *Endpoint) bool {
	for i, cur := range s.Endpoints {
		if cur == e {
			s.Endpoints = append(s.Endpoints[:i], s.Endpoints[i+1:]...)
			e.SchemaID = ""
			return true
		}
	}
	return false
}

// LinkEndpoints restores back-references after decoding from storage or JSON.
func (s *Schema) LinkEndpoints() {
	for _, e := range s.Endpoints {
		if e != nil {
			e.SchemaID = s.ID
		}
	}
}
