package service

import (
	"fmt"

	"github.com/iliyamo/signvault/internal/model"
)

// Kind classifies a service failure. Handlers map kinds to HTTP statuses.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindLifecycle
	KindOwnership
	KindValidation
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindLifecycle:
		return "lifecycle_violation"
	case KindOwnership:
		return "ownership_violation"
	case KindValidation:
		return "validation_error"
	case KindIntegrity:
		return "integrity_failure"
	}
	return "internal"
}

// Error is a named domain failure. errors.Is matches an Error against the
// exact sentinel, or against the kind sentinel of its Kind.
type Error struct {
	Kind Kind
	Msg  string

	kindOnly bool
}

func (e *Error) Error() string { return e.Msg }

// Is lets errors.Is(err, ErrLifecycleViolation) match every lifecycle error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.kindOnly {
		return e.Kind == t.Kind
	}
	return e == t
}

func kindSentinel(k Kind, msg string) *Error { return &Error{Kind: k, Msg: msg, kindOnly: true} }

func newError(k Kind, msg string) *Error { return &Error{Kind: k, Msg: msg} }

// validationf builds an ad hoc ValidationError.
func validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Kind sentinels.
var (
	ErrNotFound           = kindSentinel(KindNotFound, "not found")
	ErrLifecycleViolation = kindSentinel(KindLifecycle, "lifecycle violation")
	ErrOwnershipViolation = kindSentinel(KindOwnership, "ownership violation")
	ErrValidation         = kindSentinel(KindValidation, "validation error")
	ErrIntegrity          = kindSentinel(KindIntegrity, "integrity failure")
)

// NotFound.
var (
	ErrDocumentNotFound = newError(KindNotFound, "document not found")
	ErrSignerNotFound   = newError(KindNotFound, "signer not found")
	ErrFieldNotFound    = newError(KindNotFound, "field not found")
)

// LifecycleViolation.
var (
	ErrNotDraft           = newError(KindLifecycle, "document can only be modified while it is a draft")
	ErrNoSigners          = newError(KindLifecycle, "document cannot be sent without signers")
	ErrSelfSignOnly       = newError(KindLifecycle, "signers cannot be added to a self-sign document")
	ErrAlreadySigned      = newError(KindLifecycle, "signer has already signed")
	ErrSignerDeclined     = newError(KindLifecycle, "signer has declined")
	ErrDocumentCompleted  = newError(KindLifecycle, "document is completed")
	ErrDocumentVoided     = newError(KindLifecycle, "document is voided")
	ErrDocumentExpired    = newError(KindLifecycle, "document is expired")
	ErrDocumentNotSent    = newError(KindLifecycle, "document has not been sent")
	ErrNotCompleted       = newError(KindLifecycle, "certificate requires a completed document")
	ErrNotPending         = newError(KindLifecycle, "document is not pending")
	ErrCannotDelete       = newError(KindLifecycle, "completed documents cannot be deleted")
	ErrFieldAlreadySigned = newError(KindLifecycle, "field already carries a signature")
)

// OwnershipViolation.
var (
	ErrFieldNotInDocument  = newError(KindOwnership, "field does not belong to this document")
	ErrFieldNotAssigned    = newError(KindOwnership, "field is assigned to another signer")
	ErrSignerNotInDocument = newError(KindOwnership, "signer does not belong to this document")
)

// statusError maps a terminal or draft document status to its named error.
func statusError(status model.DocumentStatus) *Error {
	switch status {
	case model.DocumentCompleted:
		return ErrDocumentCompleted
	case model.DocumentVoided:
		return ErrDocumentVoided
	case model.DocumentExpired:
		return ErrDocumentExpired
	case model.DocumentDraft:
		return ErrDocumentNotSent
	}
	return ErrNotPending
}
