package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bryanwahyu/mlr-studio/internal/application"
	appanalysis "github.com/bryanwahyu/mlr-studio/internal/application/analysis"
	appguide "github.com/bryanwahyu/mlr-studio/internal/application/guidelines"
	appimages "github.com/bryanwahyu/mlr-studio/internal/application/images"
	appprompts "github.com/bryanwahyu/mlr-studio/internal/application/prompts"
	appuploads "github.com/bryanwahyu/mlr-studio/internal/application/uploads"
	"github.com/bryanwahyu/mlr-studio/internal/domain/ai"
	"github.com/bryanwahyu/mlr-studio/internal/domain/analysis"
	"github.com/bryanwahyu/mlr-studio/internal/domain/guidelines"
	"github.com/bryanwahyu/mlr-studio/internal/domain/images"
	"github.com/bryanwahyu/mlr-studio/internal/domain/uploads"
	"github.com/bryanwahyu/mlr-studio/internal/middleware"
)

type sliceStream struct {
	chunks []string
	err    error
}

func (s *sliceStream) Recv() (string, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *sliceStream) Close() error { return nil }

type fakeLLM struct {
	reply  string
	chunks []string
	err    error
}

func (f *fakeLLM) Complete(context.Context, []ai.Message, string) (string, error) {
	return f.reply, f.err
}

func (f *fakeLLM) CompleteStream(context.Context, []ai.Message, string) (ai.Stream, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &sliceStream{chunks: append([]string(nil), f.chunks...)}, nil
}

type fakeImageModel struct {
	b64 string
	err error
}

func (m *fakeImageModel) Generate(context.Context, ai.ImageRequest) (string, error) {
	return m.b64, m.err
}

type memSnapshots struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memSnapshots) Load(_ context.Context, ns, client string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[ns+"/"+client], nil
}

func (m *memSnapshots) Save(_ context.Context, ns, client string, b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	m.data[ns+"/"+client] = b
	return nil
}

type memStore struct {
	putURL  string
	objects []images.ObjectInfo
	deleted []string
}

func (s *memStore) Bucket() string { return "assets" }

func (s *memStore) PresignPut(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	return s.putURL + "/" + key, nil
}

func (s *memStore) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

func (s *memStore) List(_ context.Context, prefix string) ([]images.ObjectInfo, error) {
	var out []images.ObjectInfo
	for _, o := range s.objects {
		if strings.HasPrefix(o.Key, prefix) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) Delete(_ context.Context, locator string) error {
	s.deleted = append(s.deleted, locator)
	return nil
}

type memRepo struct {
	mu   sync.Mutex
	docs map[uploads.DocumentID]*uploads.Document
}

func (r *memRepo) Save(_ context.Context, d *uploads.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.docs == nil {
		r.docs = map[uploads.DocumentID]*uploads.Document{}
	}
	cp := *d
	r.docs[d.ID] = &cp
	return nil
}

func (r *memRepo) Get(_ context.Context, userID string, id uploads.DocumentID) (*uploads.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok || d.UserID != userID {
		return nil, uploads.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *memRepo) Update(ctx context.Context, userID string, id uploads.DocumentID, p uploads.Patch, at time.Time) (*uploads.Document, error) {
	r.mu.Lock()
	d, ok := r.docs[id]
	if !ok || d.UserID != userID {
		r.mu.Unlock()
		return nil, uploads.ErrNotFound
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.S3URL != nil {
		d.S3URL = *p.S3URL
	}
	d.UpdatedAt = at
	r.mu.Unlock()
	return r.Get(ctx, userID, id)
}

func (r *memRepo) History(_ context.Context, userID string, limit int) ([]*uploads.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*uploads.Document
	for _, d := range r.docs {
		if d.UserID == userID && len(out) < limit {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *memRepo) Delete(_ context.Context, userID string, id uploads.DocumentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.docs[id]; !ok || d.UserID != userID {
		return uploads.ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

// unitEmbedder returns the same unit vector for every text.
type unitEmbedder struct{}

func (unitEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, ai.EmbeddingDimensions)
		v[0] = 1
		out[i] = v
	}
	return out, nil
}

type memChunks struct {
	mu     sync.Mutex
	chunks map[uploads.DocumentID][]uploads.Chunk
	owners map[uploads.DocumentID]string
}

func (m *memChunks) ReplaceChunks(_ context.Context, userID string, id uploads.DocumentID, chunks []uploads.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chunks == nil {
		m.chunks, m.owners = map[uploads.DocumentID][]uploads.Chunk{}, map[uploads.DocumentID]string{}
	}
	m.chunks[id], m.owners[id] = chunks, userID
	return nil
}

func (m *memChunks) Chunks(_ context.Context, userID string, id uploads.DocumentID) ([]uploads.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owners[id] != userID {
		return nil, nil
	}
	return m.chunks[id], nil
}

func (m *memChunks) Search(_ context.Context, userID string, _ []float32, limit int) ([]uploads.Chunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uploads.Chunk
	for id, cs := range m.chunks {
		if m.owners[id] == userID {
			out = append(out, cs...)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fixture struct {
	handler http.Handler
	llm     *fakeLLM
	model   *fakeImageModel
	store   *memStore
	repo    *memRepo
	uploads *appuploads.Service
}

var fixedNow = time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	upload := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(upload.Close)

	f := &fixture{
		llm:   &fakeLLM{},
		model: &fakeImageModel{b64: "aGVsbG8="},
		store: &memStore{putURL: upload.URL},
		repo:  &memRepo{},
	}
	clock := application.ClockFunc(func() time.Time { return fixedNow })
	f.uploads = &appuploads.Service{Repo: f.repo, Store: f.store, Clock: clock, Chunks: &memChunks{}, Embedder: unitEmbedder{}}
	f.handler = NewRouter(Deps{
		Guidelines: appguide.NewService(&memSnapshots{}),
		Prompts: &appprompts.Service{
			LLM:             f.llm,
			Providers:       map[string]appprompts.Provider{"deepseek": {Client: f.llm, DefaultModel: "deepseek-chat"}},
			DefaultProvider: "deepseek",
		},
		Producer:  &appimages.Producer{Model: f.model, Store: f.store, HTTP: upload.Client(), Clock: clock},
		Browser:   &appimages.Browser{Store: f.store, Clock: clock},
		Analysis:  &appanalysis.Service{LLM: f.llm, Resolver: images.PublicResolver{Bucket: "assets"}},
		Uploads:   f.uploads,
		Auth:      middleware.APIKeys{"key-u1": {ID: "u1", Role: middleware.RoleUser}},
		RateLimit: RateLimit{Disabled: true},
		Clock:     clock,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer key-u1")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	f := newFixture(t)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/live = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/guidelines", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("/v1/guidelines without auth = %d", rec.Code)
	}
}

func TestGuidelinesRoutes(t *testing.T) {
	f := newFixture(t)

	var rubric map[string]string
	rec := f.do(t, http.MethodGet, "/v1/guidelines", "")
	decodeBody(t, rec, &rubric)
	if len(rubric) != len(guidelines.Keys()) {
		t.Fatalf("rubric has %d keys", len(rubric))
	}

	rec = f.do(t, http.MethodPut, "/v1/guidelines/purpose", `{"value":"Launch teaser"}`)
	decodeBody(t, rec, &rubric)
	if rubric["purpose"] != "Launch teaser" {
		t.Fatalf("purpose = %q", rubric["purpose"])
	}

	rec = f.do(t, http.MethodPut, "/v1/guidelines/not_a_key", `{"value":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown key status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/v1/guidelines/reset", "")
	decodeBody(t, rec, &rubric)
	if rubric["purpose"] != guidelines.Defaults()[guidelines.Purpose] {
		t.Fatalf("reset did not restore defaults")
	}
}

func TestImagePromptStreams(t *testing.T) {
	f := newFixture(t)
	f.llm.chunks = []string{"A calm ", "", "park scene"}
	rec := f.do(t, http.MethodPost, "/v1/prompts/image", `{"imageType":"icon","purpose":"banner"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "A calm park scene" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("content type = %s", rec.Header().Get("Content-Type"))
	}
	if !rec.Flushed {
		t.Fatal("stream was not flushed")
	}
}

func TestImagePromptRejectsUnknownType(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/prompts/image", `{"imageType":"oil-painting"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSlidesSplitsMarkup(t *testing.T) {
	f := newFixture(t)
	f.llm.chunks = []string{"```html\n<div>hi</div>\n```\n", "```css\ndiv{color:red}\n```"}
	rec := f.do(t, http.MethodPost, "/v1/slides", `{"first":"one","second":"two"}`)
	var out map[string]string
	decodeBody(t, rec, &out)
	if out["html"] != "<div>hi</div>" || out["css"] != "div{color:red}" {
		t.Fatalf("got %+v", out)
	}
}

func TestGenerateQuotaMapsTo429(t *testing.T) {
	f := newFixture(t)
	f.model.err = fmt.Errorf("together: %w", ai.ErrQuotaExceeded)
	rec := f.do(t, http.MethodPost, "/v1/images/generate", `{"prompt":"a park"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGenerateReturnsLocator(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/v1/images/generate", `{"prompt":"a park"}`)
	var res appimages.GenerateResult
	decodeBody(t, rec, &res)
	want := fmt.Sprintf("s3://assets/ai_gen/u1/2024/03/05/image_%d.jpg", fixedNow.UnixMilli())
	if res.Base64 != "aGVsbG8=" || res.S3URL != want {
		t.Fatalf("got %+v", res)
	}
}

func TestImageBrowsing(t *testing.T) {
	f := newFixture(t)
	f.store.objects = []images.ObjectInfo{
		{Key: "ai_gen/u1/2024/03/05/image_1.jpg", LastModified: fixedNow.Add(-time.Hour)},
		{Key: "ai_gen/u1/2024/03/05/image_2.jpg", LastModified: fixedNow},
		{Key: "ai_gen/u2/2024/03/05/image_3.jpg", LastModified: fixedNow},
	}

	var listing appimages.Listing
	decodeBody(t, f.do(t, http.MethodGet, "/v1/images?date=2024-03-05", ""), &listing)
	if listing.Total != 2 || listing.Images[0].FileName != "image_2.jpg" {
		t.Fatalf("listing = %+v", listing)
	}

	var item images.Item
	decodeBody(t, f.do(t, http.MethodGet, "/v1/images/selected", ""), &item)
	if item.FileName != "image_2.jpg" {
		t.Fatalf("default selection = %s", item.FileName)
	}

	decodeBody(t, f.do(t, http.MethodPost, "/v1/images/select", `{"fileName":"image_1.jpg"}`), &item)
	if item.FileName != "image_1.jpg" {
		t.Fatalf("selected = %s", item.FileName)
	}

	if rec := f.do(t, http.MethodPost, "/v1/images/select", `{"fileName":"missing.jpg"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("missing select = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/v1/images?date=05-03-2024", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date = %d", rec.Code)
	}
}

func TestAnalysisBatchedAndFallback(t *testing.T) {
	f := newFixture(t)
	f.llm.reply = "```json\n" + `{"overallScore": 1, "analyses": [
		{"category": "brand_identity", "score": 4, "feedback": "ok"},
		{"category": "accessibility", "score": 5, "feedback": "great"}],
		"generalImprovements": ["Add ISI", "Add ISI"]}` + "\n```"

	var res analysis.Result
	decodeBody(t, f.do(t, http.MethodPost, "/v1/analysis",
		`{"text":"copy","categories":["brand_identity","accessibility"]}`), &res)
	if res.ScoreCard == nil || res.ScoreCard.OverallScore != 4.5 {
		t.Fatalf("result = %+v", res)
	}
	if len(res.ScoreCard.GeneralImprovements) != 1 {
		t.Fatalf("improvements = %v", res.ScoreCard.GeneralImprovements)
	}

	f.llm.reply = "Sorry, I cannot help with that."
	res = analysis.Result{}
	decodeBody(t, f.do(t, http.MethodPost, "/v1/analysis", `{"text":"copy"}`), &res)
	if res.ScoreCard != nil || res.Raw != f.llm.reply {
		t.Fatalf("fallback = %+v", res)
	}
}

func TestAnalysisErrors(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(t, http.MethodPost, "/v1/analysis", `{"text":"x","categories":["purpose_of_image"]}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("non-assessable category = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/v1/analysis", `{"imageUrl":"s3://other/k.jpg"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("foreign bucket = %d", rec.Code)
	}
	f.llm.reply = `{"score": 9, "feedback": "", "improvements": []}`
	if rec := f.do(t, http.MethodPost, "/v1/analysis", `{"mode":"per_category","text":"x","categories":["brand_identity"]}`); rec.Code != http.StatusBadGateway {
		t.Fatalf("out-of-range per category = %d", rec.Code)
	}
}

func TestDocumentsLifecycle(t *testing.T) {
	f := newFixture(t)

	var up appuploads.PresignedUpload
	decodeBody(t, f.do(t, http.MethodPost, "/v1/uploads/presign", `{"fileName":"deck.pdf"}`), &up)
	if !strings.HasPrefix(up.Key, "uploads/u1/deck_") || !strings.HasSuffix(up.Key, ".pdf") {
		t.Fatalf("key = %s", up.Key)
	}

	rec := f.do(t, http.MethodPost, "/v1/documents", `{"fileName":"deck.pdf"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	var doc uploads.Document
	decodeBody(t, rec, &doc)
	if doc.Status != uploads.StatusPendingUpload {
		t.Fatalf("status = %s", doc.Status)
	}

	body := fmt.Sprintf(`{"status":"uploaded_to_s3","s3Url":%q}`, up.S3URL)
	decodeBody(t, f.do(t, http.MethodPatch, "/v1/documents/"+string(doc.ID), body), &doc)
	if doc.Status != uploads.StatusUploadedToS3 || doc.S3URL != up.S3URL {
		t.Fatalf("updated = %+v", doc)
	}

	if rec := f.do(t, http.MethodPatch, "/v1/documents/"+string(doc.ID), `{"status":"lost"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPatch, "/v1/documents/"+string(doc.ID), `{"s3Url":"s3://assets/uploads/u2/secret.pdf"}`); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign s3Url = %d", rec.Code)
	}

	var history []uploads.Document
	decodeBody(t, f.do(t, http.MethodGet, "/v1/uploads/history", ""), &history)
	if len(history) != 1 {
		t.Fatalf("history = %d", len(history))
	}

	if rec := f.do(t, http.MethodDelete, "/v1/uploads/"+string(doc.ID), ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
	if len(f.store.deleted) != 1 || f.store.deleted[0] != up.S3URL {
		t.Fatalf("deleted objects = %v", f.store.deleted)
	}
	if rec := f.do(t, http.MethodGet, "/v1/documents/"+string(doc.ID), ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d", rec.Code)
	}
}

func TestDocumentChunks(t *testing.T) {
	f := newFixture(t)

	var doc uploads.Document
	decodeBody(t, f.do(t, http.MethodPost, "/v1/documents", `{"fileName":"brand.md","status":"uploaded_to_s3"}`), &doc)

	rec := f.do(t, http.MethodPost, "/v1/documents/"+string(doc.ID)+"/chunks", `{"text":"# Logo\nKeep clear space.\n\n# Colour\nUse teal."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("process = %d %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &doc)
	if doc.Status != uploads.StatusProcessed {
		t.Fatalf("status = %s", doc.Status)
	}

	var chunks []map[string]any
	decodeBody(t, f.do(t, http.MethodGet, "/v1/documents/"+string(doc.ID)+"/chunks", ""), &chunks)
	if len(chunks) != 2 || chunks[0]["chunk_content"] != "# Logo\nKeep clear space." {
		t.Fatalf("chunks = %v", chunks)
	}
	if _, ok := chunks[0]["embedding"]; ok {
		t.Fatalf("vectors must not be serialised")
	}

	var hits []uploads.Chunk
	decodeBody(t, f.do(t, http.MethodPost, "/v1/documents/search", `{"query":"logo","limit":1}`), &hits)
	if len(hits) != 1 {
		t.Fatalf("hits = %d", len(hits))
	}

	if rec := f.do(t, http.MethodGet, "/v1/documents/missing/chunks", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing document = %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/v1/documents/search", `{"query":""}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("empty query = %d", rec.Code)
	}

	f.uploads.Chunks = nil
	if rec := f.do(t, http.MethodGet, "/v1/documents/"+string(doc.ID)+"/chunks", ""); rec.Code != http.StatusNotImplemented {
		t.Fatalf("without a vector store = %d", rec.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		uploads.ErrNotFound:                                http.StatusNotFound,
		images.ErrNotSelected:                              http.StatusNotFound,
		fmt.Errorf("x: %w", uploads.ErrForeignObject):      http.StatusForbidden,
		fmt.Errorf("x: %w", ai.ErrQuotaExceeded):           http.StatusTooManyRequests,
		fmt.Errorf("x: %w", application.ErrInvalidInput):   http.StatusBadRequest,
		guidelines.ErrUnknownKey:                           http.StatusBadRequest,
		fmt.Errorf("x: %w", ai.ErrUpstreamModel):           http.StatusBadGateway,
		fmt.Errorf("category: %w", analysis.ErrValidation): http.StatusBadGateway,
		uploads.ErrChunksUnavailable:                       http.StatusNotImplemented,
		errors.New("boom"):                                 http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := statusFor(err); got != want {
			t.Errorf("statusFor(%v) = %d, want %d", err, got, want)
		}
	}
}
