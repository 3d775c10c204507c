package hy3dtools

import (
	"strings"
	"time"
)

// Config configures the tools module.
type Config struct {
	// CacheDir overrides the Hugging Face download cache location.
	// If empty, uses the platform default (~/.cache/huggingface/hub on
	// Linux and macOS). Can also be set via HY3D_CACHE_DIR.
	CacheDir string

	// ModelsDir overrides the local models directory.
	// If empty, uses a models/ directory next to the executable.
	// Can also be set via HY3D_MODELS_DIR.
	ModelsDir string

	// ProjectDir is the project root containing the renderer component
	// sources. If empty, uses the current working directory.
	ProjectDir string
}

// ModelRef identifies a model repository and an optional subfolder within it.
type ModelRef struct {
	// Owner is the repository owner, e.g., "tencent".
	Owner string

	// Name is the repository name, e.g., "Hunyuan3D-2".
	Name string

	// Subfolder selects a single weight subfolder within the repository,
	// e.g., "hunyuan3d-dit-v2-0". Empty means the whole repository.
	Subfolder string
}

// RepoID returns the "owner/name" repository identifier.
func (r ModelRef) RepoID() string {
	return r.Owner + "/" + r.Name
}

// String returns the canonical string form: "owner/name subfolder".
// If Subfolder is empty, returns "owner/name".
func (r ModelRef) String() string {
	if r.Subfolder == "" {
		return r.Owner + "/" + r.Name
	}
	return r.Owner + "/" + r.Name + " " + r.Subfolder
}

// ParseModelRef parses "owner/name" or "owner/name subfolder" into a ModelRef.
// Returns ErrInvalidRef if the format is invalid.
func ParseModelRef(s string) (ModelRef, error) {
	if s == "" {
		return ModelRef{}, ErrInvalidRef
	}

	// Split on first space to separate "owner/name" from optional "subfolder"
	var repoID, subfolder string
	if idx := strings.Index(s, " "); idx != -1 {
		repoID = s[:idx]
		subfolder = s[idx+1:]
	} else {
		repoID = s
	}

	parts := strings.Split(repoID, "/")
	if len(parts) != 2 {
		return ModelRef{}, ErrInvalidRef
	}

	owner := parts[0]
	name := parts[1]

	if owner == "" || name == "" {
		return ModelRef{}, ErrInvalidRef
	}

	return ModelRef{
		Owner:     owner,
		Name:      name,
		Subfolder: subfolder,
	}, nil
}

// DefaultModels lists the Hunyuan3D-2 weight repositories the pipeline uses.
// "copy --all" stages each of these from the download cache.
var DefaultModels = []ModelRef{
	{Owner: "Tencent-Hunyuan", Name: "HunyuanDiT-v1.1-Diffusers-Distilled"},
	{Owner: "tencent", Name: "Hunyuan3D-2", Subfolder: "hunyuan3d-dit-v2-0"},
	{Owner: "tencent", Name: "Hunyuan3D-2", Subfolder: "hunyuan3d-dit-v2-0-turbo"},
	{Owner: "tencent", Name: "Hunyuan3D-2", Subfolder: "hunyuan3d-paint-v2-0"},
}

// CopiedModel contains information about a model staged in the local models
// directory.
type CopiedModel struct {
	// Ref identifies the model.
	Ref ModelRef

	// TotalSize is the total size in bytes of all copied files.
	TotalSize int64

	// FileCount is the number of copied files.
	FileCount int

	// FromSnapshot reports whether the files came from the cache entry's
	// snapshots/ layout rather than its root.
	FromSnapshot bool

	// CopiedAt is when the model was last copied.
	CopiedAt time.Time

	// Path is the absolute path to the model directory.
	Path string
}

// CopyResult reports the outcome of a single copy operation.
// A copy is best-effort: FilesFailed counts files that could not be copied,
// but their failure never fails the overall run.
type CopyResult struct {
	// Ref identifies the model that was copied.
	Ref ModelRef

	// TargetDir is the directory files were copied into.
	TargetDir string

	// FilesCopied is the number of files successfully copied.
	FilesCopied int

	// FilesFailed is the number of files that could not be copied.
	FilesFailed int

	// BytesCopied is the total bytes written.
	BytesCopied int64

	// FromSnapshot reports whether the snapshots/ layout was used.
	FromSnapshot bool
}

// CopyProgress reports progress during a copy operation.
type CopyProgress struct {
	// Phase indicates the current phase: "scan" or "copy".
	Phase string

	// FilesTotal is the total number of files to copy (known after scan).
	FilesTotal int

	// FilesDone is the number of files copied so far.
	FilesDone int

	// CurrentFile is the relative path of the file being copied.
	CurrentFile string
}

// Step status values reported in a BuildReport.
const (
	// StepOK indicates the component built and installed successfully.
	StepOK = "ok"

	// StepFailed indicates the component's install command failed.
	StepFailed = "failed"

	// StepSkipped indicates the component was skipped (no CUDA compiler).
	StepSkipped = "skipped"
)

// StepResult reports the outcome of one build plan component.
type StepResult struct {
	// Name is the component name from the build plan.
	Name string `json:"name"`

	// Dir is the component directory relative to the project root.
	Dir string `json:"dir"`

	// Status is one of StepOK, StepFailed, StepSkipped.
	Status string `json:"status"`

	// ExitCode is the install command's exit status when Status is
	// StepFailed, zero otherwise.
	ExitCode int `json:"exit_code,omitempty"`

	// Duration is how long the step took.
	Duration time.Duration `json:"duration"`
}

// BuildReport reports the outcome of a renderer build run.
type BuildReport struct {
	// RunID uniquely identifies this build run.
	RunID string `json:"run_id"`

	// Env is the conda environment the build ran in.
	Env string `json:"env"`

	// CompilerPath is the detected CUDA compiler path, empty if none.
	CompilerPath string `json:"compiler_path,omitempty"`

	// Steps lists the per-component results in execution order.
	Steps []StepResult `json:"steps"`

	// Duration is the total build time.
	Duration time.Duration `json:"duration"`
}

// ModelStatus describes one known model's staging state for Status reports.
type ModelStatus struct {
	// Ref identifies the model.
	Ref ModelRef `json:"ref"`

	// Cached reports whether the download cache holds an entry for it.
	Cached bool `json:"cached"`

	// Copied reports whether it has been staged into the models directory.
	Copied bool `json:"copied"`
}

// EnvStatus is a doctor-style report of the execution environment.
type EnvStatus struct {
	// CondaEnv is the active conda environment name, empty if none.
	CondaEnv string `json:"conda_env"`

	// ExpectedEnv is the conda environment the build plan requires.
	ExpectedEnv string `json:"expected_env"`

	// EnvOK reports whether CondaEnv matches ExpectedEnv.
	EnvOK bool `json:"env_ok"`

	// CompilerPath is the detected CUDA compiler path, empty if none.
	CompilerPath string `json:"compiler_path,omitempty"`

	// CacheDir is the resolved download cache directory.
	CacheDir string `json:"cache_dir"`

	// CacheDirExists reports whether CacheDir exists.
	CacheDirExists bool `json:"cache_dir_exists"`

	// ModelsDir is the resolved local models directory.
	ModelsDir string `json:"models_dir"`

	// Models lists the staging state of each known model.
	Models []ModelStatus `json:"models"`
}
