package backend

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jo-hoe/issuereport/internal/backend/auth"
	"github.com/jo-hoe/issuereport/internal/backend/database"
	"github.com/jo-hoe/issuereport/internal/backend/storage"
	"github.com/jo-hoe/issuereport/internal/core"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const (
	ConfirmationPage = "/thankyou.html"
	maxSubmitBody    = "20M"
	attachmentField  = "files"
)

type APIService struct {
	config      *core.ServiceConfig
	coreService *core.CoreService
}

// reportSubmission mirrors the public form; field names match the HTML inputs.
type reportSubmission struct {
	Name        string `form:"name" validate:"required,max=200"`
	Email       string `form:"email" validate:"max=320"`
	IssueType   string `form:"issue-type" validate:"max=100"`
	Description string `form:"description" validate:"max=5000"`
	Location    string `form:"location" validate:"max=500"`
}

type submitResponse struct {
	ReportID int64 `json:"report_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewAPIService(config *core.ServiceConfig, coreService *core.CoreService) *APIService {
	return &APIService{
		config:      config,
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	// Set probe route
	e.GET("/probe", func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "ok")
	})

	submitMiddleware := []echo.MiddlewareFunc{middleware.BodyLimit(maxSubmitBody)}
	if s.config.RateLimit.Enabled {
		submitMiddleware = append(submitMiddleware, s.rateLimiter())
	}
	e.POST("/submit-report", s.submitReportHandler, submitMiddleware...)

	e.GET("/storage/:reportID/:filename", s.storageHandler)

	admin := e.Group("/api/admin", auth.BearerAuth(s.config.Auth.JWTSecret))
	admin.GET("/reports", s.adminReportsHandler)
	admin.GET("/reports/:id", s.adminReportHandler)
}

func (s *APIService) rateLimiter() echo.MiddlewareFunc {
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(s.config.RateLimit.RequestsPerSecond),
			Burst:     s.config.RateLimit.Burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return ctx.JSON(http.StatusForbidden, errorResponse{Error: "unable to identify client"})
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			slog.Warn("submitReportHandler: rate limit exceeded", "client", identifier)
			return ctx.JSON(http.StatusTooManyRequests, errorResponse{Error: "too many submissions, please wait"})
		},
	})
}

func (s *APIService) submitReportHandler(ctx echo.Context) error {
	var submission reportSubmission
	if err := ctx.Bind(&submission); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "failed to read submission"})
	}
	submission.trim()
	if err := ctx.Validate(&submission); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: httpErrorMessage(err)})
	}

	input := core.ReportInput{
		Name:                submission.Name,
		ContactDetails:      submission.Email,
		IssueCategory:       submission.IssueType,
		Description:         submission.Description,
		ManualLocationInput: submission.Location,
	}
	created, err := s.coreService.SubmitReport(ctx.Request().Context(), input, formAttachments(ctx))
	if err != nil {
		slog.Error("submitReportHandler: form submission failed",
			"status", http.StatusInternalServerError, "error", err)
		return ctx.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	if acceptsJSON(ctx.Request()) {
		return ctx.JSON(http.StatusCreated, submitResponse{ReportID: created.ReportID})
	}
	return ctx.Redirect(http.StatusSeeOther, fmt.Sprintf("%s?rid=%d", ConfirmationPage, created.ReportID))
}

func (s *APIService) storageHandler(ctx echo.Context) error {
	reportID, err := strconv.ParseInt(ctx.Param("reportID"), 10, 64)
	if err != nil || reportID < 1 {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "invalid report id"})
	}
	objectPath, err := storage.ObjectPath(reportID, ctx.Param("filename"))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	object, err := s.coreService.GetObject(ctx.Request().Context(), objectPath)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return ctx.JSON(http.StatusNotFound, errorResponse{Error: "file not found"})
	}
	if err != nil {
		slog.Error("storageHandler: failed to load object",
			"status", http.StatusInternalServerError, "error", err, "path", objectPath)
		return ctx.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to load file"})
	}
	header := ctx.Response().Header()
	header.Set(echo.HeaderXContentTypeOptions, "nosniff")
	if !isRasterImage(object.ContentType) {
		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(objectPath)})
		if disposition == "" {
			disposition = "attachment"
		}
		header.Set(echo.HeaderContentDisposition, disposition)
	}
	return ctx.Blob(http.StatusOK, object.ContentType, object.Data)
}

// isRasterImage reports whether a stored file may be rendered inline.
// SVG is excluded since browsers execute scripts embedded in it.
func isRasterImage(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "image/") && mediaType != "image/svg+xml"
}

func (s *APIService) adminReportsHandler(ctx echo.Context) error {
	claims, _ := auth.ClaimsFromContext(ctx)
	return ctx.JSON(http.StatusOK, map[string]string{
		"message":          "Successfully accessed protected admin data.",
		"admin_user_email": claims.Email,
		"admin_user_id":    claims.Subject,
	})
}

func (s *APIService) adminReportHandler(ctx echo.Context) error {
	reportID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "invalid report id"})
	}
	details, err := s.coreService.GetReportDetails(ctx.Request().Context(), reportID)
	if errors.Is(err, database.ErrReportNotFound) {
		return ctx.JSON(http.StatusNotFound, errorResponse{Error: "report not found"})
	}
	if err != nil {
		slog.Error("adminReportHandler: failed to load report",
			"status", http.StatusInternalServerError, "error", err, "report_id", reportID)
		return ctx.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return ctx.JSON(http.StatusOK, details)
}

func (r *reportSubmission) trim() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.IssueType = strings.TrimSpace(r.IssueType)
	r.Description = strings.TrimSpace(r.Description)
	r.Location = strings.TrimSpace(r.Location)
}

// formAttachments returns the uploaded files in submission order. Requests
// without a multipart body simply carry no attachments.
func formAttachments(ctx echo.Context) []core.Attachment {
	form, err := ctx.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	headers := form.File[attachmentField]
	attachments := make([]core.Attachment, 0, len(headers))
	for _, header := range headers {
		attachments = append(attachments, fileHeaderAttachment(header))
	}
	return attachments
}

func fileHeaderAttachment(header *multipart.FileHeader) core.Attachment {
	return core.Attachment{
		Filename: header.Filename,
		Open: func() (io.ReadCloser, error) {
			return header.Open()
		},
	}
}

func acceptsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}

func httpErrorMessage(err error) string {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Sprint(httpErr.Message)
	}
	return err.Error()
}
