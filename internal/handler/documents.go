package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/signvault/internal/model"
	"github.com/iliyamo/signvault/internal/queue"
	"github.com/iliyamo/signvault/internal/repository"
	"github.com/iliyamo/signvault/internal/service"
	"github.com/iliyamo/signvault/internal/utils"
)

// pdfMagic is the header every accepted upload starts with.
const pdfMagic = "%PDF-"

// DocumentHandler serves the owner API.
type DocumentHandler struct {
	Docs           *service.DocumentService
	Certs          *service.CertificateService
	Users          *repository.UserRepo
	PublicURL      string
	MaxUploadBytes int64
	Log            *zap.Logger

	dispatcher
}

// NewDocumentHandler wires the owner API. n may be nil to disable
// notifications.
func NewDocumentHandler(docs *service.DocumentService, certs *service.CertificateService, users *repository.UserRepo,
	publicURL string, maxUploadMB int, n Notifier, log *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		Docs:           docs,
		Certs:          certs,
		Users:          users,
		PublicURL:      strings.TrimRight(publicURL, "/"),
		MaxUploadBytes: int64(maxUploadMB) << 20,
		Log:            log.With(zap.String("handler", "documents")),
		dispatcher:     newDispatcher(n),
	}
}

// ----- DTOs -----

type fieldReq struct {
	FieldType  model.FieldType `json:"field_type"`
	Page       int             `json:"page"`
	X          float64         `json:"x"`
	Y          float64         `json:"y"`
	Width      float64         `json:"width"`
	Height     float64         `json:"height"`
	SignerID   *string         `json:"signer_id"`
	Value      *string         `json:"value"`
	FontSize   *int            `json:"font_size"`
	FontFamily *string         `json:"font_family"`
	DateFormat *string         `json:"date_format"`
}

type fieldPatchReq struct {
	Page        *int     `json:"page"`
	X           *float64 `json:"x"`
	Y           *float64 `json:"y"`
	Width       *float64 `json:"width"`
	Height      *float64 `json:"height"`
	Value       *string  `json:"value"`
	FontSize    *int     `json:"font_size"`
	FontFamily  *string  `json:"font_family"`
	DateFormat  *string  `json:"date_format"`
	SignerID    *string  `json:"signer_id"`
	ClearSigner bool     `json:"clear_signer"`
}

type signerReq struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	OrderIndex *int   `json:"order_index"`
}

type listResp struct {
	Items  []model.Document `json:"items"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// ----- documents -----

// Create accepts a multipart upload (title, self_sign_only, expires_at, file),
// hashes the file as it streams and registers a draft document.
func (h *DocumentHandler) Create(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "file is required", "kind": service.KindValidation.String()})
	}
	if fh.Size > h.MaxUploadBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file too large"})
	}

	var selfSign bool
	if v := strings.TrimSpace(c.FormValue("self_sign_only")); v != "" {
		if selfSign, err = strconv.ParseBool(v); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "self_sign_only must be a boolean"})
		}
	}
	var expiresAt *time.Time
	if v := strings.TrimSpace(c.FormValue("expires_at")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "expires_at must be RFC3339"})
		}
		expiresAt = &t
	}

	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable upload"})
	}
	defer f.Close()

	head := make([]byte, len(pdfMagic))
	n, _ := io.ReadFull(f, head)
	if string(head[:n]) != pdfMagic {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "file must be a PDF", "kind": service.KindValidation.String()})
	}
	hash, size, err := utils.HashReader(io.LimitReader(io.MultiReader(bytes.NewReader(head[:n]), f), h.MaxUploadBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable upload"})
	}
	if size > h.MaxUploadBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "file too large"})
	}

	d, err := h.Docs.CreateDocument(c.Request().Context(), service.CreateDocumentInput{
		OwnerID:          ownerID(c),
		Title:            c.FormValue("title"),
		OriginalFilename: fh.Filename,
		FileHash:         hash,
		SelfSignOnly:     selfSign,
		ExpiresAt:        expiresAt,
		Client:           clientInfo(c),
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, d)
}

// List returns the caller's documents, newest first.
func (h *DocumentHandler) List(c echo.Context) error {
	limit := queryInt(c, "limit", 20)
	offset := queryInt(c, "offset", 0)
	docs, total, err := h.Docs.ListDocuments(c.Request().Context(), ownerID(c), limit, offset)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if docs == nil {
		docs = []model.Document{}
	}
	return c.JSON(http.StatusOK, listResp{Items: docs, Total: total, Limit: limit, Offset: offset})
}

func (h *DocumentHandler) Get(c echo.Context) error {
	d, err := h.Docs.GetDocument(c.Request().Context(), ownerID(c), c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *DocumentHandler) Delete(c echo.Context) error {
	if err := h.Docs.DeleteDocument(c.Request().Context(), ownerID(c), c.Param("id")); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- fields -----

func (h *DocumentHandler) AddField(c echo.Context) error {
	var req fieldReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	f, err := h.Docs.AddField(c.Request().Context(), ownerID(c), c.Param("id"), service.FieldInput{
		FieldType:  req.FieldType,
		Page:       req.Page,
		X:          req.X,
		Y:          req.Y,
		Width:      req.Width,
		Height:     req.Height,
		SignerID:   req.SignerID,
		Value:      req.Value,
		FontSize:   req.FontSize,
		FontFamily: req.FontFamily,
		DateFormat: req.DateFormat,
	}, clientInfo(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, f)
}

func (h *DocumentHandler) UpdateField(c echo.Context) error {
	var req fieldPatchReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	f, err := h.Docs.UpdateField(c.Request().Context(), ownerID(c), c.Param("id"), c.Param("field_id"), service.FieldPatch{
		Page:        req.Page,
		X:           req.X,
		Y:           req.Y,
		Width:       req.Width,
		Height:      req.Height,
		Value:       req.Value,
		FontSize:    req.FontSize,
		FontFamily:  req.FontFamily,
		DateFormat:  req.DateFormat,
		SignerID:    req.SignerID,
		ClearSigner: req.ClearSigner,
	}, clientInfo(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, f)
}

func (h *DocumentHandler) DeleteField(c echo.Context) error {
	if err := h.Docs.DeleteField(c.Request().Context(), ownerID(c), c.Param("id"), c.Param("field_id"), clientInfo(c)); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- signers -----

func (h *DocumentHandler) AddSigner(c echo.Context) error {
	var req signerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	s, err := h.Docs.AddSigner(c.Request().Context(), ownerID(c), c.Param("id"), service.SignerInput{
		Email:      req.Email,
		Name:       req.Name,
		OrderIndex: req.OrderIndex,
	}, clientInfo(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *DocumentHandler) RemoveSigner(c echo.Context) error {
	if err := h.Docs.RemoveSigner(c.Request().Context(), ownerID(c), c.Param("id"), c.Param("signer_id"), clientInfo(c)); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- lifecycle -----

// Send moves the draft to pending and queues one invitation per signer.
func (h *DocumentHandler) Send(c echo.Context) error {
	owner := ownerID(c)
	res, err := h.Docs.Send(c.Request().Context(), owner, c.Param("id"), clientInfo(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.notify(c.Request().Context(), func(ctx context.Context, n Notifier) {
		h.publishInvitations(ctx, n, owner, res)
	})
	return c.JSON(http.StatusOK, echo.Map{"document": res.Document, "signers": res.Signers})
}

func (h *DocumentHandler) publishInvitations(ctx context.Context, n Notifier, owner string, res *service.SendResult) {
	sender := "SignVault"
	if u, err := h.Users.GetByID(ctx, owner); err == nil {
		sender = u.Name
	} else if !errors.Is(err, repository.ErrNotFound) {
		h.Log.Warn("load sender failed", zap.String("document_id", res.Document.ID), zap.Error(err))
	}
	requestedAt := utils.FormatTimestamp(time.Now())
	for _, s := range res.Signers {
		_ = n.PublishSigningRequested(ctx, queue.SigningRequestedEvent{
			DocumentID:    res.Document.ID,
			DocumentTitle: res.Document.Title,
			SignerID:      s.ID,
			SignerEmail:   s.Email,
			SignerName:    s.Name,
			SigningURL:    h.PublicURL + "/sign/" + s.AccessToken,
			SenderName:    sender,
			RequestedAt:   requestedAt,
		})
	}
}

func (h *DocumentHandler) Void(c echo.Context) error {
	d, err := h.Docs.Void(c.Request().Context(), ownerID(c), c.Param("id"), clientInfo(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, d)
}

// ----- audit -----

func (h *DocumentHandler) Audit(c echo.Context) error {
	entries, err := h.Docs.AuditTrail(c.Request().Context(), ownerID(c), c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if entries == nil {
		entries = []model.AuditLogEntry{}
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": entries})
}

// Verify recomputes the document's chain. A broken chain is reported, not
// repaired.
func (h *DocumentHandler) Verify(c echo.Context) error {
	id := c.Param("id")
	ok, err := h.Docs.VerifyIntegrity(c.Request().Context(), ownerID(c), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"document_id": id, "valid": ok})
}

func (h *DocumentHandler) Certificate(c echo.Context) error {
	cert, err := h.Certs.GenerateCertificate(c.Request().Context(), ownerID(c), c.Param("id"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, cert)
}

func (h *DocumentHandler) Downloaded(c echo.Context) error {
	entry, err := h.Docs.RecordDownload(c.Request().Context(), ownerID(c), c.Param("id"), clientInfo(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, entry)
}
