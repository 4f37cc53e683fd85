package controllers

import "errors"

// Sentinel errors used inside transactions to pick the right HTTP status
// once the transaction has rolled back.
var (
	errDuplicateEnrollment = errors.New("duplicate enrollment")
	errCapacityExceeded    = errors.New("capacity exceeded")
	errDuplicateSubmission = errors.New("duplicate submission")
	errAlreadyBorrowed     = errors.New("book already borrowed")
)
