package domain

// Package domain holds the sentinel errors shared by the auth and HTTP layers.
// Keep this package free of transport (HTTP) and infrastructure concerns.

import "errors"

var (
	// ErrStateMismatch signals that the OAuth callback state does not match
	// the one stored in the session.
	ErrStateMismatch = errors.New("oauth state mismatch")
	// ErrNoAccount signals that the authenticated user has no usable account.
	ErrNoAccount = errors.New("no usable account for user")
	// ErrInvalidSubmission signals that the submitted form cannot produce a
	// valid envelope request.
	ErrInvalidSubmission = errors.New("invalid envelope submission")
	// ErrMissingEnvelopeID signals a successful create call whose response
	// carried no envelope id.
	ErrMissingEnvelopeID = errors.New("envelope created without an envelope id")
)
