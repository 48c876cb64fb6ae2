package media

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/radif/mediaservice/internal/apperror"
	"github.com/radif/mediaservice/internal/middleware"
	"github.com/radif/mediaservice/internal/response"
)

const (
	// sniffLen is how much of an untyped file part is inspected for its type.
	sniffLen = 3072
	// maxFieldSize bounds non-file multipart fields.
	maxFieldSize = 64 << 10
	// multipartOverhead is allowed on top of the file ceiling for boundaries and fields.
	multipartOverhead = 1 << 20
)

// MetadataHeader may carry the custom-metadata JSON instead of a form field.
const MetadataHeader = "X-Media-Metadata"

// Handler holds HTTP handlers for media endpoints.
type Handler struct {
	svc      *Service
	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler creates a new media Handler.
func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.With().Str("component", "media-handler").Logger(),
	}
}

// Routes returns the /media sub-router. Every route requires a verified bearer
// token; deletion additionally requires deletePermission.
func (h *Handler) Routes(auth *middleware.Authenticator, deletePermission string) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.RequireAuth)
	r.Post("/upload", h.Upload)
	r.Post("/presigned-upload", h.PresignUpload)
	r.Get("/presigned-url/*", h.PresignedURL)
	r.Get("/metadata/*", h.Metadata)
	r.Get("/list", h.List)
	r.With(middleware.RequirePermission(deletePermission, h.log)).Delete("/*", h.Delete)
	return r
}

type presignUploadRequest struct {
	FileName string         `json:"fileName" validate:"required,max=1024" example:"clip.mp4"`
	FileType string         `json:"fileType" validate:"required" example:"video/mp4"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type deleteData struct {
	Key string `json:"key" example:"images/1718000000000-6f1c0e8e-3b8a-4c55-9a51-1f1de2a4f0a1-photo.png"`
}

// Upload godoc
//
//	@Summary		Upload media
//	@Description	Streams a multipart file to object storage and returns a time-bounded retrieval URL. Custom metadata is a JSON object in the "metadata" field (sent before the file) or the X-Media-Metadata header; invalid metadata is ignored.
//	@Tags			media
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file		formData	file	true	"File to upload"
//	@Param			metadata	formData	string	false	"Custom metadata JSON object"
//	@Success		200			{object}	response.Envelope{data=UploadResult}
//	@Failure		400			{object}	response.Envelope
//	@Failure		401			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/media/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.svc.MaxUploadSize()+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		response.Fail(w, r, h.log, apperror.Validation(apperror.ReasonInvalidRequest, "expected a multipart/form-data body"))
		return
	}

	in := UploadInput{
		Size:     -1,
		Metadata: r.Header.Get(MetadataHeader),
		Uploader: middleware.CallerID(r.Context()),
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			response.Fail(w, r, h.log, h.bodyError(err))
			return
		}

		switch part.FormName() {
		case "metadata":
			b, err := io.ReadAll(io.LimitReader(part, maxFieldSize))
			if err != nil {
				response.Fail(w, r, h.log, h.bodyError(err))
				return
			}
			in.Metadata = string(b)
		case "file":
			if part.FileName() == "" {
				continue
			}
			h.streamFile(w, r, part, in)
			return
		}
	}

	// No file part: the service reports it.
	_, err = h.svc.Upload(r.Context(), in)
	response.Fail(w, r, h.log, err)
}

func (h *Handler) streamFile(w http.ResponseWriter, r *http.Request, part *multipart.Part, in UploadInput) {
	br := bufio.NewReaderSize(part, sniffLen)
	in.FileName = part.FileName()
	in.Body = br
	in.ContentType = part.Header.Get("Content-Type")
	if ct := normalizeContentType(in.ContentType); ct == "" || ct == "application/octet-stream" {
		head, _ := br.Peek(sniffLen)
		in.ContentType = mimetype.Detect(head).String()
	}
	if cl, err := strconv.ParseInt(part.Header.Get("Content-Length"), 10, 64); err == nil && cl >= 0 {
		in.Size = cl
	}

	res, err := h.svc.Upload(r.Context(), in)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			err = h.svc.tooLarge()
		}
		response.Fail(w, r, h.log, err)
		return
	}
	response.OK(w, res)
}

// PresignUpload godoc
//
//	@Summary		Issue a direct-upload URL
//	@Description	Returns a time-bounded PUT URL for a newly assigned key. The file never transits this service; metadata on the object is whatever the client's PUT sets.
//	@Tags			media
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		presignUploadRequest	true	"Intended file"
//	@Success		200		{object}	response.Envelope{data=PresignUploadResult}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/media/presigned-upload [post]
func (h *Handler) PresignUpload(w http.ResponseWriter, r *http.Request) {
	var req presignUploadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxFieldSize)).Decode(&req); err != nil {
		response.Fail(w, r, h.log, apperror.Validation(apperror.ReasonInvalidRequest, "invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Fail(w, r, h.log, apperror.Validation(apperror.ReasonInvalidRequest, validationMessage(err)))
		return
	}

	res, err := h.svc.PresignUpload(r.Context(), PresignUploadInput{FileName: req.FileName, ContentType: req.FileType})
	if err != nil {
		response.Fail(w, r, h.log, err)
		return
	}
	response.OK(w, res)
}

// PresignedURL godoc
//
//	@Summary		Issue a retrieval URL
//	@Description	Returns a time-bounded GET URL for an existing key.
//	@Tags			media
//	@Produce		json
//	@Security		BearerAuth
//	@Param			key	path		string	true	"Object key"
//	@Success		200	{object}	response.Envelope{data=RetrievalURL}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/media/presigned-url/{key} [get]
func (h *Handler) PresignedURL(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		response.Fail(w, r, h.log, err)
		return
	}
	res, err := h.svc.PresignGet(r.Context(), key)
	if err != nil {
		response.Fail(w, r, h.log, err)
		return
	}
	response.OK(w, res)
}

// Metadata godoc
//
//	@Summary		Get media metadata
//	@Description	Returns size, timestamps, content type, ETag and custom metadata of a stored object.
//	@Tags			media
//	@Produce		json
//	@Security		BearerAuth
//	@Param			key	path		string	true	"Object key"
//	@Success		200	{object}	response.Envelope{data=Metadata}
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/media/metadata/{key} [get]
func (h *Handler) Metadata(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		response.Fail(w, r, h.log, err)
		return
	}
	res, err := h.svc.Stat(r.Context(), key)
	if err != nil {
		response.Fail(w, r, h.log, err)
		return
	}
	response.OK(w, res)
}

// List godoc
//
//	@Summary		List media
//	@Description	Lists keys under a prefix one page at a time. Directory markers are omitted. Pass nextCursor back as cursor for the next page.
//	@Tags			media
//	@Produce		json
//	@Security		BearerAuth
//	@Param			prefix		query		string	false	"Key prefix, e.g. images/"
//	@Param			recursive	query		bool	false	"Descend into nested prefixes"
//	@Param			cursor		query		string	false	"Continue after this key"
//	@Param			limit		query		int		false	"Page size (default 100, max 1000)"
//	@Success		200			{object}	response.Envelope{data=ListPage}
//	@Failure		400			{object}	response.Envelope
//	@Failure		401			{object}	response.Envelope
//	@Failure		500			{object}	response.Envelope
//	@Router			/media/list [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := ListInput{
		Prefix: q.Get("prefix"),
		Cursor: q.Get("cursor"),
	}

	if v := q.Get("recursive"); v != "" {
		recursive, err := strconv.ParseBool(v)
		if err != nil {
			response.Fail(w, r, h.log, apperror.Validation(apperror.ReasonInvalidRequest, "recursive must be a boolean"))
			return
		}
		in.Recursive = recursive
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			response.Fail(w, r, h.log, apperror.Validation(apperror.ReasonInvalidRequest, "limit must be a positive integer"))
			return
		}
		in.Limit = limit
	}

	page, err := h.svc.List(r.Context(), in)
	if err != nil {
		response.Fail(w, r, h.log, err)
		return
	}
	response.OK(w, page)
}

// Delete godoc
//
//	@Summary		Delete media
//	@Description	Permanently removes an object. Requires the configured delete permission.
//	@Tags			media
//	@Produce		json
//	@Security		BearerAuth
//	@Param			key	path		string	true	"Object key"
//	@Success		200	{object}	response.Envelope{data=deleteData}
//	@Failure		401	{object}	response.Envelope
//	@Failure		403	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/media/{key} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	key, err := keyParam(r)
	if err != nil {
		response.Fail(w, r, h.log, err)
		return
	}
	if err := h.svc.Delete(r.Context(), key); err != nil {
		response.Fail(w, r, h.log, err)
		return
	}
	response.OK(w, deleteData{Key: key})
}

// keyParam returns the wildcard key of the route. chi matches against
// r.URL.RawPath when the request carries one and the already decoded
// r.URL.Path otherwise, so only the former is unescaped here.
func keyParam(r *http.Request) (string, error) {
	key := chi.URLParam(r, "*")
	if r.URL.RawPath == "" {
		return key, nil
	}
	key, err := url.PathUnescape(key)
	if err != nil {
		return "", apperror.Validation(apperror.ReasonInvalidKey, "key is not valid percent-encoding")
	}
	return key, nil
}

func (h *Handler) bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return h.svc.tooLarge()
	}
	return apperror.Validation(apperror.ReasonInvalidRequest, "malformed multipart body")
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()[:1])+fe.Field()[1:]+" is "+fe.Tag())
	}
	return strings.Join(fields, "; ")
}
