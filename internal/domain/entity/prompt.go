package entity

import (
	"fmt"
	"strings"
)

type Prompt struct {
	ID   string
	Text string
}

const scaffoldPromptHeader = "You are a code generator that writes complete, runnable Spring Boot CRUD projects.\nRules:\n\n1. Output only source code. No prose, no explanations, no markdown fences.\n2. Emit every section listed below, in the listed order.\n3. Put the marker line exactly as written on its own line directly before the section's content.\n4. Use package com.example and its subpackages model, repository, service and controller.\n5. Import everything each file uses; the project must build with `mvn package` as is.\n"

// ComposePrompt builds the generation instruction for one schema. It is pure:
// equal schemas always yield byte-identical prompts.
func ComposePrompt(s Schema) Prompt {
	var b strings.Builder
	b.WriteString(scaffoldPromptHeader)

	fmt.Fprintf(&b, "\nEntity: %s\n", s.EntityName)
	if s.BasePath != "" {
		fmt.Fprintf(&b, "Base path: %s\n", s.BasePath)
	}
	b.WriteString("Fields:\n")
	if len(s.Fields) == 0 {
		b.WriteString("- id (generated primary key only)\n")
	}
	for _, f := range s.Fields {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	var endpoints []*Endpoint
	for _, e := range s.Endpoints {
		if e != nil {
			endpoints = append(endpoints, e)
		}
	}
	if len(endpoints) > 0 {
		b.WriteString("Additional endpoints:\n")
		for _, e := range endpoints {
			fmt.Fprintf(&b, "- %s %s", e.Method, e.Path)
			if e.ResponseBody != "" {
				fmt.Fprintf(&b, " returning %s", e.ResponseBody)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nSections:\n")
	for _, id := range Sections {
		fmt.Fprintf(&b, "%s\n<%s>\n", id.Marker(), id.Description())
	}

	return Prompt{
		ID:   "scaffold:" + s.EntityName,
		Text: b.String(),
	}
}
