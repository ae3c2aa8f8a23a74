package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"apigen/internal/domain/entity"
)

// defaultLayoutHCL is the Spring Boot project layout used when no layout
// file is configured.
const defaultLayoutHCL = `
section "MODEL" {
  path = "src/main/java/com/example/model/${entity}.java"
}

section "REPOSITORY" {
  path = "src/main/java/com/example/repository/${entity}Repository.java"
}

section "SERVICE" {
  path = "src/main/java/com/example/service/${entity}Service.java"
}

section "CONTROLLER" {
  path = "src/main/java/com/example/controller/${entity}Controller.java"
}

section "APPLICATION" {
  path = "src/main/java/com/example/Application.java"
}

section "PROPERTIES" {
  path = "application.properties"
}

section "BUILD" {
  path = "pom.xml"
}
`

// HCLLayout maps sections to file paths. Each section block's path is an
// HCL expression evaluated per entity with the variables entity and
// entity_lower in scope.
type HCLLayout struct {
	filename string
	body     hcl.Body
}

type layoutDoc struct {
	Sections []sectionBlock `hcl:"section,block"`
}

type sectionBlock struct {
	ID   string `hcl:"id,label"`
	Path string `hcl:"path"`
}

func Default() *HCLLayout {
	l, err := Parse([]byte(defaultLayoutHCL), "default.hcl")
	if err != nil {
		panic(fmt.Sprintf("default layout: %v", err))
	}
	return l
}

func Load(path string) (*HCLLayout, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read layout file: %w", err)
	}
	return Parse(src, path)
}

// Parse reads a layout document and checks it against a sample entity so
// that a broken file is rejected at startup rather than mid-job.
func Parse(src []byte, filename string) (*HCLLayout, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse layout %s: %s", filename, diags.Error())
	}

	l := &HCLLayout{filename: filename, body: file.Body}
	if _, err := l.Resolve("Sample"); err != nil {
		return nil, err
	}
	return l, nil
}

// Resolve evaluates the layout for one entity name.
func (l *HCLLayout) Resolve(entityName string) (entity.FileLayout, error) {
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"entity":       cty.StringVal(entityName),
			"entity_lower": cty.StringVal(strings.ToLower(entityName)),
		},
	}

	var doc layoutDoc
	if diags := gohcl.DecodeBody(l.body, evalCtx, &doc); diags.HasErrors() {
		return nil, fmt.Errorf("decode layout %s: %s", l.filename, diags.Error())
	}

	known := make(map[entity.SectionID]bool, len(entity.Sections))
	for _, id := range entity.Sections {
		known[id] = true
	}

	out := make(entity.FileLayout, len(doc.Sections))
	seen := make(map[string]entity.SectionID, len(doc.Sections))
	for _, s := range doc.Sections {
		id := entity.SectionID(s.ID)
		if !known[id] {
			return nil, fmt.Errorf("layout %s: unknown section %q", l.filename, s.ID)
		}
		if _, dup := out[id]; dup {
			return nil, fmt.Errorf("layout %s: section %s declared twice", l.filename, id)
		}
		p := filepath.ToSlash(filepath.Clean(filepath.FromSlash(s.Path)))
		if s.Path == "" || !filepath.IsLocal(filepath.FromSlash(p)) {
			return nil, fmt.Errorf("layout %s: section %s path %q must be relative and inside the project", l.filename, id, s.Path)
		}
		if other, dup := seen[p]; dup {
			return nil, fmt.Errorf("layout %s: sections %s and %s share path %s", l.filename, other, id, p)
		}
		seen[p] = id
		out[id] = p
	}

	for _, id := range entity.Sections {
		if _, ok := out[id]; !ok {
			return nil, fmt.Errorf("layout %s: missing section %s", l.filename, id)
		}
	}
	return out, nil
}
