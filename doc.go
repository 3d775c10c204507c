// Package hy3dtools provides setup tooling for the Hunyuan3D-2 text-to-3D
// pipeline: staging downloaded model weights into the project's local models
// directory and building the native renderer components.
//
// The package serves two primary use cases:
//
//  1. Programmatic API via the Manager interface - Applications can use
//     NewManager to create a Manager that copies cached model weights,
//     inspects the local models directory, and drives renderer builds.
//
//  2. Embeddable CLI via NewCommand - Parent CLI tools can attach the full
//     command tree to their Cobra root command, providing commands like
//     "mytool copy", "mytool build", "mytool status", etc.
//
// # Thread Safety
//
// The Manager interface is fully thread-safe. All methods can be called
// concurrently from multiple goroutines without external synchronization.
//
// # Model Cache
//
// Weights are read from the Hugging Face download cache, which stores each
// repository under models--<owner>--<name> with the actual file contents in
// versioned snapshot subdirectories. Downloading is out of scope here; the
// copier only stages what a downloader has already fetched.
//
// # Storage
//
// Copied models land in a local models directory resolved in priority order:
// the HY3D_MODELS_DIR environment variable, Config.ModelsDir, then a models/
// directory next to the running executable. A copied.json registry in that
// directory tracks what has been staged.
package hy3dtools
