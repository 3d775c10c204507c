package hy3dtools

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultEnvName is the conda environment the project expects to be active
// when building renderer components.
const DefaultEnvName = "hunyuan3d"

// Component describes one buildable renderer component.
type Component struct {
	// Name identifies the component in reports and logs.
	Name string `yaml:"name"`

	// Dir is the component's source directory, relative to the project root.
	Dir string `yaml:"dir"`

	// Command overrides the install command. Defaults to an editable pip
	// install of the component directory.
	Command []string `yaml:"command,omitempty"`

	// RequiresCUDA marks components that need the CUDA compiler. They are
	// skipped with a notice when nvcc is not available.
	RequiresCUDA bool `yaml:"requires_cuda,omitempty"`
}

// command returns the install command line for the component.
func (c Component) command() []string {
	if len(c.Command) > 0 {
		return c.Command
	}
	return []string{"pip", "install", "-e", "."}
}

// BuildPlan is an ordered list of renderer components to build, gated on a
// conda environment being active.
type BuildPlan struct {
	// Environment is the conda environment that must be active.
	Environment string `yaml:"environment"`

	// Components are built sequentially, fail-fast.
	Components []Component `yaml:"components"`
}

// DefaultPlan returns the built-in plan for the Hunyuan3D-2 renderer
// components: the differentiable renderer (plain C++ toolchain) and the
// custom rasterizer (needs nvcc).
func DefaultPlan() BuildPlan {
	return BuildPlan{
		Environment: DefaultEnvName,
		Components: []Component{
			{
				Name: "differentiable_renderer",
				Dir:  "hy3dgen/texgen/differentiable_renderer",
			},
			{
				Name:         "custom_rasterizer",
				Dir:          "hy3dgen/texgen/custom_rasterizer",
				RequiresCUDA: true,
			},
		},
	}
}

// LoadPlan reads and validates a build plan from a YAML file.
// Returns ErrInvalidPlan if the file cannot be parsed or fails validation.
func LoadPlan(path string) (BuildPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BuildPlan{}, fmt.Errorf("%w: reading %s: %v", ErrInvalidPlan, path, err)
	}

	var plan BuildPlan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return BuildPlan{}, fmt.Errorf("%w: parsing %s: %v", ErrInvalidPlan, path, err)
	}

	if plan.Environment == "" {
		plan.Environment = DefaultEnvName
	}

	if err := plan.validate(); err != nil {
		return BuildPlan{}, err
	}

	return plan, nil
}

// validate checks the plan has at least one component and that every
// component names a directory.
func (p BuildPlan) validate() error {
	if len(p.Components) == 0 {
		return fmt.Errorf("%w: no components", ErrInvalidPlan)
	}
	for i, c := range p.Components {
		if c.Name == "" {
			return fmt.Errorf("%w: component %d has no name", ErrInvalidPlan, i)
		}
		if c.Dir == "" {
			return fmt.Errorf("%w: component %q has no dir", ErrInvalidPlan, c.Name)
		}
	}
	return nil
}
