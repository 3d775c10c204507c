package hy3dtools

import "errors"

// Sentinel errors for copy and build operations.
// Use errors.Is() to check for specific error conditions.
var (
	// ErrCacheNotFound indicates the download cache has no entry for the
	// model. The user must run the downloader first.
	ErrCacheNotFound = errors.New("hy3dtools: model not found in download cache")

	// ErrNotCopied indicates the model has not been staged into the local
	// models directory.
	ErrNotCopied = errors.New("hy3dtools: model not copied")

	// ErrAlreadyCopied indicates the model is already staged.
	// Returned by Copy when an entry exists and WithForce() is not specified.
	ErrAlreadyCopied = errors.New("hy3dtools: model already copied")

	// ErrInvalidRef indicates an invalid model reference format.
	ErrInvalidRef = errors.New("hy3dtools: invalid model reference")

	// ErrStorageError indicates a filesystem operation failed.
	ErrStorageError = errors.New("hy3dtools: storage error")

	// ErrWrongEnv indicates the expected conda environment is not active.
	// No build command runs when this is returned.
	ErrWrongEnv = errors.New("hy3dtools: wrong conda environment")

	// ErrInvalidPlan indicates a build plan file could not be parsed or
	// failed validation.
	ErrInvalidPlan = errors.New("hy3dtools: invalid build plan")
)
