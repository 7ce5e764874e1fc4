// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package validate

import (
	"errors"
	"fmt"
	"strings"

	x509chain "github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/chain"
	"github.com/H0llyW00dzZ/x509-path-validator/src/internal/x509/status"
)

var (
	// ErrNoPath is returned by [Result.TrustRoot] when no path was built.
	ErrNoPath = errors.New("validate: no certification path")
	// ErrNotSuccessful is returned by [Result.TrustRoot] for a failed
	// validation.
	ErrNotSuccessful = errors.New("validate: validation was not successful")
)

// Result is the outcome of a validation: the evaluated path, its merged
// status vector and the overall code.
type Result struct {
	runID    string
	code     status.Code
	path     x509chain.Path
	status   status.PathStatus
	warnings status.PathStatus
}

// newPathResult derives the result of an evaluated path.
func newPathResult(runID string, path x509chain.Path, ps status.PathStatus) *Result {
	return &Result{
		runID:    runID,
		code:     ps.Overall(),
		path:     path,
		status:   ps,
		warnings: ps.Warnings(),
	}
}

// newBuildFailure is the result of a validation that never got a path.
func newBuildFailure(runID string, code status.Code) *Result {
	return &Result{runID: runID, code: code}
}

// RunID identifies the validation call in log lines.
func (r *Result) RunID() string { return r.runID }

// Code returns the overall status code.
func (r *Result) Code() status.Code { return r.code }

// Successful reports whether the path validated: the overall code is
// [status.Verified] or backed by an OCSP or CRL proof.
func (r *Result) Successful() bool {
	switch r.code {
	case status.Verified, status.OCSPResponseGood, status.ValidCRLChecked:
		return true
	}
	return false
}

// ResultString returns the human-readable description of [Result.Code].
func (r *Result) ResultString() string { return r.code.String() }

// TrustRoot returns the trust anchor of a successful validation.
func (r *Result) TrustRoot() (*x509chain.Certificate, error) {
	if len(r.path) == 0 {
		return nil, ErrNoPath
	}
	if !r.Successful() {
		return nil, fmt.Errorf("%w: %s", ErrNotSuccessful, r.code.Name())
	}
	return r.path.TrustAnchor(), nil
}

// Path returns the evaluated path, or nil when none could be built.
func (r *Result) Path() x509chain.Path { return r.path }

// Status returns the merged status vector, one set per path position.
func (r *Result) Status() status.PathStatus { return r.status }

// Warnings returns the warning-tier codes per path position.
func (r *Result) Warnings() status.PathStatus { return r.warnings }

// WarningsString lists the warnings as "[index] description", comma
// separated.
func (r *Result) WarningsString() string {
	var parts []string
	for i, set := range r.warnings {
		for _, c := range set.Sorted() {
			parts = append(parts, fmt.Sprintf("[%d] %s", i, c))
		}
	}
	return strings.Join(parts, ", ")
}

// Report is the serializable form of a result.
type Report struct {
	RunID      string               `json:"runId" yaml:"runId"`
	Successful bool                 `json:"successful" yaml:"successful"`
	Code       string               `json:"code" yaml:"code"`
	Result     string               `json:"result" yaml:"result"`
	Warnings   []string             `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Path       x509chain.PathReport `json:"path" yaml:"path"`
}

// Report builds the serializable form of r.
func (r *Result) Report() Report {
	report := Report{
		RunID:      r.runID,
		Successful: r.Successful(),
		Code:       r.code.Name(),
		Result:     r.ResultString(),
		Path:       r.path.Report(r.status),
	}
	for i, set := range r.warnings {
		for _, c := range set.Sorted() {
			report.Warnings = append(report.Warnings, fmt.Sprintf("[%d] %s", i, c.Name()))
		}
	}
	return report
}
