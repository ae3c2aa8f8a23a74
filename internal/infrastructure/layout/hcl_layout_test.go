package layout

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"apigen/internal/domain/entity"
)

func TestDefaultLayout(t *testing.T) {
	t.Parallel()
	got, err := Default().Resolve("Book")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := map[entity.SectionID]string{
		entity.SectionModel:       "src/main/java/com/example/model/Book.java",
		entity.SectionRepository:  "src/main/java/com/example/repository/BookRepository.java",
		entity.SectionService:     "src/main/java/com/example/service/BookService.java",
		entity.SectionController:  "src/main/java/com/example/controller/BookController.java",
		entity.SectionApplication: "src/main/java/com/example/Application.java",
		entity.SectionProperties:  "application.properties",
		entity.SectionBuild:       "pom.xml",
	}
	if len(got) != len(entity.Sections) {
		t.Fatalf("layout has %d sections, want %d", len(got), len(entity.Sections))
	}
	for id, path := range want {
		if got[id] != path {
			t.Errorf("%s -> %q, want %q", id, got[id], path)
		}
	}
}

const customLayout = `
section "MODEL" {
  path = "src/${entity_lower}/${entity}.java"
}
section "REPOSITORY" {
  path = "src/${entity_lower}/${entity}Repo.java"
}
section "SERVICE" {
  path = "src/${entity_lower}/${entity}Service.java"
}
section "CONTROLLER" {
  path = "src/${entity_lower}/${entity}Api.java"
}
section "APPLICATION" {
  path = "src/App.java"
}
section "PROPERTIES" {
  path = "config/application.properties"
}
section "BUILD" {
  path = "pom.xml"
}
`

func TestLoadCustomLayout(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "layout.hcl")
	if err := os.WriteFile(file, []byte(customLayout), 0o644); err != nil {
		t.Fatal(err)
	}
	l, err := Load(file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := l.Resolve("Invoice")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got[entity.SectionController] != "src/invoice/InvoiceApi.java" {
		t.Fatalf("controller path = %q", got[entity.SectionController])
	}
}

func TestParseRejectsInvalidLayouts(t *testing.T) {
	t.Parallel()
	withBlock := func(extra string) string { return customLayout + extra }
	without := func(id string) string {
		i := strings.Index(customLayout, `section "`+id+`"`)
		j := strings.Index(customLayout[i:], "}\n") + i + 2
		return customLayout[:i] + customLayout[j:]
	}

	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{"syntax error", `section "MODEL" {`, "parse layout"},
		{"unknown section", withBlock("section \"README\" {\n  path = \"README.md\"\n}\n"), "unknown section"},
		{"duplicate section", withBlock("section \"MODEL\" {\n  path = \"other.java\"\n}\n"), "declared twice"},
		{"missing section", without("BUILD"), "missing section BUILD"},
		{"escaping path", strings.Replace(customLayout, `"pom.xml"`, `"../pom.xml"`, 1), "inside the project"},
		{"absolute path", strings.Replace(customLayout, `"pom.xml"`, `"/etc/pom.xml"`, 1), "inside the project"},
		{"shared path", strings.Replace(customLayout, `"src/App.java"`, `"pom.xml"`, 1), "share path"},
		{"unknown variable", strings.Replace(customLayout, `"pom.xml"`, `"${project}/pom.xml"`, 1), "decode layout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "test.hcl")
			if err == nil {
				t.Fatal("Parse succeeded")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()
	if _, err := Load(filepath.Join(t.TempDir(), "nope.hcl")); err == nil {
		t.Fatal("Load succeeded for a missing file")
	}
}
