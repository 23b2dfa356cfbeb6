package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/signvault/internal/model"
	"github.com/iliyamo/signvault/internal/queue"
	"github.com/iliyamo/signvault/internal/repository"
	"github.com/iliyamo/signvault/internal/service"
	"github.com/iliyamo/signvault/internal/utils"
)

// SigningHandler serves the signer API. Signers authenticate with the access
// token in the path; it is never logged.
type SigningHandler struct {
	Signing *service.SigningService
	Docs    *service.DocumentService
	Users   *repository.UserRepo
	Log     *zap.Logger

	dispatcher
}

func NewSigningHandler(signing *service.SigningService, docs *service.DocumentService, users *repository.UserRepo,
	n Notifier, log *zap.Logger) *SigningHandler {
	return &SigningHandler{
		Signing:    signing,
		Docs:       docs,
		Users:      users,
		Log:        log.With(zap.String("handler", "signing")),
		dispatcher: newDispatcher(n),
	}
}

type submitReq struct {
	Signatures  []service.SignatureSubmission  `json:"signatures"`
	FieldValues []service.FieldValueSubmission `json:"field_values"`
}

type declineReq struct {
	Reason *string `json:"reason"`
}

// Session opens the signing page for the token's signer.
func (h *SigningHandler) Session(c echo.Context) error {
	s, err := h.Signing.OpenSession(c.Request().Context(), c.Param("token"), clientInfo(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Document records that the signer fetched the document itself.
func (h *SigningHandler) Document(c echo.Context) error {
	d, err := h.Signing.RecordDocumentView(c.Request().Context(), c.Param("token"), clientInfo(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"document_id":       d.ID,
		"title":             d.Title,
		"original_filename": d.OriginalFilename,
		"file_hash":         d.FileHash,
		"status":            d.Status,
	})
}

// Submit applies the signer's batch. The last signer's submit completes the
// document and queues the completion notice.
func (h *SigningHandler) Submit(c echo.Context) error {
	var req submitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	res, err := h.Signing.Submit(c.Request().Context(), c.Param("token"), service.SubmitInput{
		Signatures:  req.Signatures,
		FieldValues: req.FieldValues,
		Client:      clientInfo(c),
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if res.DocumentCompleted {
		d := res.Document
		h.notify(c.Request().Context(), func(ctx context.Context, n Notifier) {
			h.publishCompletion(ctx, n, d)
		})
	}
	return c.JSON(http.StatusOK, res)
}

func (h *SigningHandler) publishCompletion(ctx context.Context, n Notifier, d *model.Document) {
	var recipients []queue.Recipient
	if owner, err := h.Users.GetByID(ctx, d.OwnerID); err == nil {
		recipients = append(recipients, queue.Recipient{Email: owner.Email, Name: owner.Name})
	} else {
		h.Log.Warn("load owner failed", zap.String("document_id", d.ID), zap.Error(err))
	}
	signers, err := h.Docs.ListSigners(ctx, d.OwnerID, d.ID)
	if err != nil {
		h.Log.Warn("load signers failed", zap.String("document_id", d.ID), zap.Error(err))
	}
	for _, s := range signers {
		if s.Status == model.SignerSigned {
			recipients = append(recipients, queue.Recipient{Email: s.Email, Name: s.Name})
		}
	}
	completedAt := ""
	if d.CompletedAt != nil {
		completedAt = utils.FormatTimestamp(*d.CompletedAt)
	}
	_ = n.PublishDocumentCompleted(ctx, queue.DocumentCompletedEvent{
		DocumentID:    d.ID,
		DocumentTitle: d.Title,
		Recipients:    recipients,
		CompletedAt:   completedAt,
	})
}

// Decline records the signer's refusal with an optional reason.
func (h *SigningHandler) Decline(c echo.Context) error {
	var req declineReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Signing.Decline(c.Request().Context(), c.Param("token"), req.Reason, clientInfo(c)); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true})
}
