// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Medkg Contributors

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigParseInvalidFormat   Code = "config.parse.invalid_format"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeCatalogLoadReadFailure    Code = "catalog.load.read.failure"
	CodeCatalogParseInvalidFormat Code = "catalog.parse.invalid_format"
	CodeCatalogValidateInvalid    Code = "catalog.validate.invalid"

	CodeFetchRequestInvalid   Code = "fetch.entity.request.invalid"
	CodeFetchResponseInvalid  Code = "fetch.entity.response.invalid"
	CodeFetchUpstreamFailure  Code = "fetch.entity.upstream.failure"
	CodeFetchEntityNotFound   Code = "fetch.entity.not_found"
	CodeFetchCancelled        Code = "fetch.entity.timeout"
	CodeEnrichRequestInvalid  Code = "enrich.query.request.invalid"
	CodeEnrichResponseInvalid Code = "enrich.query.response.invalid"
	CodeEnrichUpstreamFailure Code = "enrich.query.upstream.failure"
	CodeExpandConfigInvalid   Code = "expand.config.invalid"
	CodePacingConfigInvalid   Code = "pacing.config.invalid"

	CodeSnapshotWriteFailure  Code = "snapshot.write.failure"
	CodeSnapshotReadFailure   Code = "snapshot.read.failure"
	CodeSnapshotFormatInvalid Code = "snapshot.parse.invalid_format"

	CodeStoreEntityNotFound     Code = "store.entity.get.not_found"
	CodeStoreRunNotFound        Code = "store.run.get.not_found"
	CodeStoreDatabaseFailure    Code = "store.database.failure"
	CodeStoreBackendUnsupported Code = "store.backend.unsupported"
	CodeStoreInvalidInput       Code = "store.invalid_input"

	CodeServerConfigInvalid Code = "server.config.invalid"
	CodeMetricsServeFailure Code = "metrics.serve.failure"

	CodeCLISetupFailure Code = "cli.setup.failure"
	CodeCLIInputInvalid Code = "cli.input.invalid"
	CodeInternalFailure Code = "internal.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldNodeID(value string) Attr {
	return Field("node_id", value)
}

func FieldRelation(value string) Attr {
	return Field("relation", value)
}

func FieldEndpoint(value string) Attr {
	return Field("endpoint", value)
}

func FieldAttempt(value int) Attr {
	return Field("attempt", value)
}

func FieldPath(value string) Attr {
	return Field("path", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeInternalFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_format"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsUpstreamFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "upstream") && reason(code) == "failure"
}

// ExitCode maps an error to a process exit status for the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case IsInvalidInput(err):
		return 2
	case IsNotFound(err):
		return 3
	case IsUpstreamFailure(err), IsTimeout(err):
		return 4
	default:
		return 1
	}
}

// Join collects errs under a single code. Nil entries are dropped and Join
// returns nil when nothing is left.
func Join(code Code, msg string, errs ...error) error {
	joined := stderrors.Join(errs...)
	if joined == nil {
		return nil
	}
	return oops.Code(code).Wrapf(joined, "%s", msg)
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
