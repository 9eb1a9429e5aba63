package config

import (
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// hclLibrary is the HCL form of a build document. Build groups are labelled
// blocks, so declaration order comes for free:
//
//	latest = "3.2.1"
//
//	build_group "modern" {
//	  dockerfile    = "Dockerfile-3_x"
//	  versions      = ["3.1.5", "3.2.1"]
//	  instances     = ["alpine", "debian"]
//	  image_version = "{v}"
//	  build_args    = { VERSION = "{v}" }
//	}
type hclLibrary struct {
	Latest string     `hcl:"latest,optional"`
	Groups []hclGroup `hcl:"build_group,block"`
}

// Required fields are optional here so ValidateLibrary reports them with
// the same messages as the other formats.
type hclGroup struct {
	Name         string            `hcl:"name,label"`
	Dockerfile   string            `hcl:"dockerfile,optional"`
	Versions     []string          `hcl:"versions,optional"`
	Instances    []string          `hcl:"instances,optional"`
	ImageVersion string            `hcl:"image_version,optional"`
	BuildArgs    map[string]string `hcl:"build_args,optional"`
}

// decodeHCL parses an HCL build document. Unknown attributes and blocks are
// rejected by the decoder.
func decodeHCL(path string, data []byte) (*LibraryConfig, error) {
	file, diags := hclparse.NewParser().ParseHCL(data, path)
	if diags.HasErrors() {
		return nil, diags
	}

	var doc hclLibrary
	if diags := gohcl.DecodeBody(file.Body, nil, &doc); diags.HasErrors() {
		return nil, diags
	}

	lib := &LibraryConfig{Latest: doc.Latest}
	for _, g := range doc.Groups {
		lib.BuildGroups = append(lib.BuildGroups, BuildGroup(g))
	}
	return lib, nil
}
