package entity

import "errors"

var (
	// Pipeline errors
	ErrDecode              = errors.New("invalid image encoding")
	ErrNoFaceDetected      = errors.New("no face detected in the provided image")
	ErrInternalComputation = errors.New("internal computation error")

	// Submission errors
	ErrValidation = errors.New("validation failed")

	// Job errors
	ErrJobNotFound = errors.New("job not found")
	ErrJobFinished = errors.New("job already finished")
	ErrJobTimeout  = errors.New("job timed out")
)
