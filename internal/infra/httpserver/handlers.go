package httpserver

import (
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	appimages "github.com/bryanwahyu/mlr-studio/internal/application/images"
	appprompts "github.com/bryanwahyu/mlr-studio/internal/application/prompts"
	appuploads "github.com/bryanwahyu/mlr-studio/internal/application/uploads"
	"github.com/bryanwahyu/mlr-studio/internal/domain/analysis"
	"github.com/bryanwahyu/mlr-studio/internal/domain/guidelines"
	"github.com/bryanwahyu/mlr-studio/internal/domain/uploads"
	"github.com/bryanwahyu/mlr-studio/internal/middleware"
)

// GET /v1/guidelines
func (r *Router) handleGuidelines(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.Guidelines.Get(req.Context(), userID(req)))
}

// GET /v1/guidelines/schema
func (r *Router) handleGuidelineSchema(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.Guidelines.Schema())
}

// PUT /v1/guidelines/{key}
// Body: {"value": "..."}
func (r *Router) handleSetGuideline(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Value string `json:"value"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	key := guidelines.Key(chi.URLParam(req, "key"))
	rubric, err := r.Guidelines.Set(req.Context(), userID(req), key, body.Value)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rubric)
}

// POST /v1/guidelines/reset
func (r *Router) handleResetGuidelines(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.Guidelines.Reset(req.Context(), userID(req)))
}

// POST /v1/prompts/image
// Body: {"imageType": "realistic|icon|cartoon", "purpose": "..."}
func (r *Router) handleImagePrompt(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		ImageType appprompts.ImageType `json:"imageType"`
		Purpose   string               `json:"purpose"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	rubric := r.Guidelines.Get(req.Context(), userID(req))
	return r.stream(w, req, func(onChunk appprompts.ChunkFunc) (string, error) {
		return r.Prompts.SynthesizeImagePrompt(req.Context(), rubric, body.ImageType, middleware.SanitizeString(body.Purpose), onChunk)
	})
}

type slideRequest struct {
	First  string `json:"first"`
	Second string `json:"second"`
}

// POST /v1/prompts/slide
func (r *Router) handleSlidePrompt(w http.ResponseWriter, req *http.Request) error {
	var body slideRequest
	if err := decode(req, &body); err != nil {
		return err
	}
	return r.stream(w, req, func(onChunk appprompts.ChunkFunc) (string, error) {
		return r.Prompts.SynthesizeSlideMarkup(req.Context(), body.First, body.Second, onChunk)
	})
}

// POST /v1/slides returns the finished markup split into html and css.
func (r *Router) handleSlides(w http.ResponseWriter, req *http.Request) error {
	var body slideRequest
	if err := decode(req, &body); err != nil {
		return err
	}
	markup, err := r.Prompts.SynthesizeSlideMarkup(req.Context(), body.First, body.Second, nil)
	if err != nil {
		return err
	}
	parts := appprompts.ExtractSlideMarkup(markup)
	return writeJSON(w, http.StatusOK, map[string]string{
		"markup": markup,
		"html":   parts.HTML,
		"css":    parts.CSS,
	})
}

// POST /v1/chat
// Body: {"provider": "deepseek", "model": "...", "messages": [{"role": "user", "content": "..."}]}
func (r *Router) handleChat(w http.ResponseWriter, req *http.Request) error {
	var cmd appprompts.ChatCommand
	if err := decode(req, &cmd); err != nil {
		return err
	}
	return r.stream(w, req, func(onChunk appprompts.ChunkFunc) (string, error) {
		return r.Prompts.Chat(req.Context(), cmd, onChunk)
	})
}

// POST /v1/images/generate
// Body: {"prompt": "..."}
func (r *Router) handleGenerate(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	res, err := r.Producer.Generate(req.Context(), userID(req), body.Prompt)
	if err != nil {
		return err
	}
	middleware.IncrementImagesGenerated()
	if res.Error != "" {
		middleware.IncrementStorageFailures()
	}
	return writeJSON(w, http.StatusOK, res)
}

// GET /v1/images?date=YYYY-MM-DD
func (r *Router) handleListImages(w http.ResponseWriter, req *http.Request) error {
	date, err := middleware.ValidateDate(req.URL.Query().Get("date"), r.Clock.Now())
	if err != nil {
		return invalid(err)
	}
	items, err := r.Browser.ListForDate(req.Context(), userID(req), date)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, appimages.Listing{Images: items, Total: len(items)})
}

// POST /v1/images/select
// Body: {"fileName": "image_1700000000000.jpg"}
func (r *Router) handleSelectImage(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		FileName string `json:"fileName"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateFileName(body.FileName); err != nil {
		return invalid(err)
	}
	item, err := r.Browser.Select(userID(req), body.FileName)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, item)
}

// GET /v1/images/selected
func (r *Router) handleSelectedImage(w http.ResponseWriter, req *http.Request) error {
	item, err := r.Browser.Selected(userID(req))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, item)
}

// POST /v1/images/refresh
func (r *Router) handleRefreshImages(w http.ResponseWriter, req *http.Request) error {
	items, err := r.Browser.Refresh(req.Context(), userID(req))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, appimages.Listing{Images: items, Total: len(items)})
}

type analysisRequest struct {
	Mode       analysis.Mode `json:"mode"`
	Text       string        `json:"text"`
	ImageURL   string        `json:"imageUrl"`
	Categories []string      `json:"categories"`
}

// POST /v1/images/selected/review
// Body: {"mode": "batched|per_category", "categories": [...]}
func (r *Router) handleReviewSelected(w http.ResponseWriter, req *http.Request) error {
	var body analysisRequest
	if err := decode(req, &body); err != nil {
		return err
	}
	item, err := r.Browser.Selected(userID(req))
	if err != nil {
		return err
	}
	return r.analyze(w, req, body.Mode, analysis.Artifact{ImageURL: item.URL}, body.Categories)
}

// POST /v1/analysis
// Body: {"mode": "batched", "text": "...", "imageUrl": "s3://bucket/key", "categories": [...]}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	var body analysisRequest
	if err := decode(req, &body); err != nil {
		return err
	}
	artifact := analysis.Artifact{Text: body.Text, ImageURL: body.ImageURL}
	return r.analyze(w, req, body.Mode, artifact, body.Categories)
}

func (r *Router) analyze(w http.ResponseWriter, req *http.Request, mode analysis.Mode, artifact analysis.Artifact, categories []string) error {
	rubric := r.Guidelines.Get(req.Context(), userID(req))
	res, err := r.Analysis.Run(req.Context(), mode, artifact, rubric, categories)
	if err != nil {
		return err
	}
	middleware.IncrementAnalyses()
	if !res.Parsed() {
		middleware.IncrementAnalysisFallbacks()
	}
	return writeJSON(w, http.StatusOK, res)
}

// POST /v1/uploads/presign
// Body: {"fileName": "deck.pdf"}
func (r *Router) handlePresignUpload(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		FileName string `json:"fileName"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateFileName(body.FileName); err != nil {
		return invalid(err)
	}
	up, err := r.Uploads.PresignUpload(req.Context(), userID(req), body.FileName)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, up)
}

// GET /v1/uploads/history?limit=
func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	docs, err := r.Uploads.History(req.Context(), userID(req), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	if docs == nil {
		docs = []*uploads.Document{}
	}
	return writeJSON(w, http.StatusOK, docs)
}

// DELETE /v1/uploads/{id}
func (r *Router) handleDeleteUpload(w http.ResponseWriter, req *http.Request) error {
	id := uploads.DocumentID(chi.URLParam(req, "id"))
	if err := r.Uploads.Delete(req.Context(), userID(req), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// POST /v1/documents
func (r *Router) handleCreateDocument(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		FileName   string             `json:"fileName"`
		S3URL      string             `json:"s3Url"`
		Status     uploads.Status     `json:"status"`
		Metadata   map[string]any     `json:"metadata"`
		Visibility uploads.Visibility `json:"visibility"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	d, err := r.Uploads.Create(req.Context(), appuploads.CreateCommand{
		UserID:     userID(req),
		FileName:   middleware.SanitizeString(body.FileName),
		S3URL:      body.S3URL,
		Status:     body.Status,
		Metadata:   body.Metadata,
		Visibility: body.Visibility,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, d)
}

// PATCH /v1/documents/{id}
// Body: {"status": "uploaded_to_s3", "s3Url": "s3://bucket/key"}
func (r *Router) handleUpdateDocument(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Status *uploads.Status `json:"status"`
		S3URL  *string         `json:"s3Url"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	id := uploads.DocumentID(chi.URLParam(req, "id"))
	d, err := r.Uploads.Update(req.Context(), userID(req), id, uploads.Patch{Status: body.Status, S3URL: body.S3URL})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, d)
}

// GET /v1/documents/{id}
func (r *Router) handleGetDocument(w http.ResponseWriter, req *http.Request) error {
	d, err := r.Uploads.Get(req.Context(), userID(req), uploads.DocumentID(chi.URLParam(req, "id")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, d)
}

// POST /v1/documents/{id}/chunks
// Body: {"text": "..."}; replaces the document's chunks.
func (r *Router) handleProcessDocument(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Text string `json:"text"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	d, err := r.Uploads.Process(req.Context(), userID(req), uploads.DocumentID(chi.URLParam(req, "id")), body.Text)
	if err != nil {
		return err
	}
	middleware.IncrementDocumentsIndexed()
	return writeJSON(w, http.StatusOK, d)
}

// GET /v1/documents/{id}/chunks
func (r *Router) handleListChunks(w http.ResponseWriter, req *http.Request) error {
	chunks, err := r.Uploads.ListChunks(req.Context(), userID(req), uploads.DocumentID(chi.URLParam(req, "id")))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, chunks)
}

// POST /v1/documents/search
// Body: {"query": "logo clear space", "limit": 5}
func (r *Router) handleSearchChunks(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := decode(req, &body); err != nil {
		return err
	}
	chunks, err := r.Uploads.Search(req.Context(), userID(req), middleware.SanitizeString(body.Query), body.Limit)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, chunks)
}

// stream writes each chunk as plain text and flushes it. Errors before the
// first chunk go through wrap; later ones can only be logged.
func (r *Router) stream(w http.ResponseWriter, req *http.Request, run func(appprompts.ChunkFunc) (string, error)) error {
	started := false
	start := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.WriteHeader(http.StatusOK)
	}
	_, err := run(func(chunk string) {
		start()
		io.WriteString(w, chunk)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	})
	if err != nil {
		if !started {
			return err
		}
		log.Printf("event=stream_aborted path=%s request_id=%s err=%v", req.URL.Path, chimw.GetReqID(req.Context()), err)
		return nil
	}
	start()
	return nil
}
