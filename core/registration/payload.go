package registration

import (
	"fmt"
	"sort"
	"strings"
)

// Payload is the flattened registration sent to the persistence backend.
// Fields are keyed by dot-path; Files by "documents.<slot>".
type Payload struct {
	Fields map[string]string
	Files  map[string]*Document
}

// Keys returns the field keys sorted.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FileKeys returns the file keys sorted.
func (p Payload) FileKeys() []string {
	keys := make([]string, 0, len(p.Files))
	for k := range p.Files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Lines renders the payload one "key=value" per line, fields first, for display and diffs.
func (p Payload) Lines() []string {
	lines := make([]string, 0, len(p.Fields)+len(p.Files))
	for _, k := range p.Keys() {
		lines = append(lines, fmt.Sprintf("%s=%s\n", k, p.Fields[k]))
	}
	for _, k := range p.FileKeys() {
		doc := p.Files[k]
		lines = append(lines, fmt.Sprintf("%s=%s (%s, %d bytes, %s)\n", k, doc.Name, doc.ContentType, doc.Size, doc.Checksum))
	}
	return lines
}

func (p Payload) String() string {
	return strings.Join(p.Lines(), "")
}

// Assembler flattens records into payloads.
type Assembler struct {
	partnerField string
	partnerID    string
}

// NewAssembler returns an Assembler that adds partnerField=partnerID to every payload.
func NewAssembler(partnerField, partnerID string) *Assembler {
	return &Assembler{partnerField: partnerField, partnerID: partnerID}
}

// Build flattens rec. The address mirror flag is UI-only and never sent.
func (a *Assembler) Build(rec Record) Payload {
	p := Payload{
		Fields: make(map[string]string, len(leafPaths)+1),
		Files:  make(map[string]*Document),
	}
	for _, path := range leafPaths {
		switch {
		case path == mirrorFlagPath:
			continue
		case isDocumentPath(path):
			if doc, _ := Get(rec, path); doc != nil {
				if d, ok := doc.(*Document); ok && d != nil {
					p.Files[path] = d
				}
			}
		default:
			p.Fields[path] = Display(rec, path)
		}
	}
	if a.partnerField != "" {
		p.Fields[a.partnerField] = a.partnerID
	}
	return p
}
