package depmap

import (
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

type hclDoc struct {
	Dependency []hclDef `hcl:"dependency,block"`
}

type hclDef struct {
	Type            string   `hcl:"type,label"`
	Handler         string   `hcl:"handler"`
	Parents         []string `hcl:"parents,optional"`
	SupportsIDTypes bool     `hcl:"supports_id_types,optional"`
}

func decodeHCL(name string, data []byte) ([]Def, error) {
	var doc hclDoc
	if err := hclsimple.Decode(name, data, nil, &doc); err != nil {
		return nil, err
	}
	defs := make([]Def, len(doc.Dependency))
	for i, d := range doc.Dependency {
		defs[i] = Def{
			Type:            strings.TrimSpace(d.Type),
			Handler:         strings.TrimSpace(d.Handler),
			Parents:         trimAll(d.Parents),
			SupportsIDTypes: d.SupportsIDTypes,
		}
	}
	return defs, nil
}
