package kernel

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Manifest is the machine-readable companion of a generated kernel
// file. The assembly runtime reads it to learn the entry points, the
// local tensor layout and the argument order of each kernel.
type Manifest struct {
	// ID identifies one compilation; kernels and manifests written
	// together share it.
	ID string `yaml:"id"`

	Form  string `yaml:"form"`
	Arity int    `yaml:"arity"`

	// Precision is "float32" or "float64", matching real_t in the
	// kernel source.
	Precision string `yaml:"precision"`

	Entries []EntryPoint `yaml:"entries"`

	TestDofs    int          `yaml:"test_dofs"`
	TrialDofs   int          `yaml:"trial_dofs,omitempty"`
	TestLayout  []SlotLayout `yaml:"test_layout"`
	TrialLayout []SlotLayout `yaml:"trial_layout,omitempty"`

	Coefficients []CoefficientSpec `yaml:"coefficients,omitempty"`

	// Geometry documents the per-cell and per-facet geometry array
	// strides the kernels expect.
	Geometry GeometryContract `yaml:"geometry"`
}

// GeometryContract pins down the runtime-provided geometry arrays.
type GeometryContract struct {
	// CellStride entries per cell: detJ, rx, ry, sx, sy.
	CellStride int `yaml:"cell_stride"`
	// FacetStride entries per boundary facet: scale, nx, ny. The scale
	// is half the physical facet length, matching reference interval
	// quadrature weights that sum to 2.
	FacetStride int `yaml:"facet_stride"`
}

// NewManifest describes a generated local kernel.
func NewManifest(lk *LocalKernel, precision DataType) *Manifest {
	prec := "float64"
	if precision == Float32 {
		prec = "float32"
	}
	return &Manifest{
		ID:           uuid.NewString(),
		Form:         lk.FormName,
		Arity:        lk.Arity,
		Precision:    prec,
		Entries:      lk.Entries,
		TestDofs:     lk.TestDofs,
		TrialDofs:    lk.TrialDofs,
		TestLayout:   lk.TestLayout,
		TrialLayout:  lk.TrialLayout,
		Coefficients: lk.Coeffs,
		Geometry:     GeometryContract{CellStride: numGeo, FacetStride: numFgeo},
	}
}

// Encode writes the manifest as YAML.
func (m *Manifest) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encoding manifest for form %q: %w", m.Form, err)
	}
	return enc.Close()
}

// DecodeManifest reads a manifest written by Encode.
func DecodeManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := yaml.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}
