package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/aniketgiri96/Ragnetic/internal/core/domain"
)

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type repoFake struct {
	doc         *domain.Document
	created     []*domain.Document
	getErr      error
	createErr   error
	statusErr   error
	statusCalls []statusCall
	chunkCounts map[string]int
}

func (f *repoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, doc)
	return nil
}

func (f *repoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *repoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	return f.statusErr
}

func (f *repoFake) SetChunkCount(_ context.Context, id string, chunkCount int) error {
	if f.chunkCounts == nil {
		f.chunkCounts = make(map[string]int)
	}
	f.chunkCounts[id] = chunkCount
	return nil
}

type storageFake struct {
	saved map[string][]byte
	err   error
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.err != nil {
		return f.err
	}
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	f.saved[key] = content
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	content, ok := f.saved[key]
	if !ok {
		return nil, fmt.Errorf("no object %q", key)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return nil
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, *domain.Document) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type chunkerFake struct {
	chunks []domain.Chunk
	bases  []map[string]any
}

func (f *chunkerFake) Chunk(_ string, metadataBase map[string]any) []domain.Chunk {
	f.bases = append(f.bases, metadataBase)
	return f.chunks
}

type embedderFake struct {
	vectors    [][]float32
	queryVec   []float32
	err        error
	queryErr   error
	queryCalls int
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.vectors != nil {
		return f.vectors, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(context.Context, string) ([]float32, error) {
	f.queryCalls++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.queryVec != nil {
		return f.queryVec, nil
	}
	return []float32{0.1, 0.2}, nil
}

type vectorStoreFake struct {
	ensured     map[string]int
	deleted     []string
	upsertedDoc string
	upserted    int
	searchHits  []domain.Candidate
	searchErr   error
	scrollPages [][]domain.Candidate
	scrollCalls int
	scrollErr   error
	ensureErr   error
	deleteErr   error
	upsertErr   error
}

func (f *vectorStoreFake) EnsureCollection(_ context.Context, collection string, vectorSize int) error {
	if f.ensureErr != nil {
		return f.ensureErr
	}
	if f.ensured == nil {
		f.ensured = make(map[string]int)
	}
	f.ensured[collection] = vectorSize
	return nil
}

func (f *vectorStoreFake) UpsertChunks(_ context.Context, _ string, doc *domain.Document, chunks []domain.Chunk, _ [][]float32) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upsertedDoc = doc.ID
	f.upserted += len(chunks)
	return nil
}

func (f *vectorStoreFake) DeleteByDocument(_ context.Context, _ string, documentID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, documentID)
	return nil
}

func (f *vectorStoreFake) Search(_ context.Context, _ string, _ []float32, _ int) ([]domain.Candidate, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := make([]domain.Candidate, len(f.searchHits))
	copy(out, f.searchHits)
	return out, nil
}

func (f *vectorStoreFake) Scroll(_ context.Context, _ string, _ string, _ int) ([]domain.Candidate, string, error) {
	if f.scrollErr != nil {
		return nil, "", f.scrollErr
	}
	if f.scrollCalls >= len(f.scrollPages) {
		return nil, "", nil
	}
	page := f.scrollPages[f.scrollCalls]
	f.scrollCalls++
	next := ""
	if f.scrollCalls < len(f.scrollPages) {
		next = strconv.Itoa(f.scrollCalls)
	}
	return page, next, nil
}

type generatorFake struct {
	response     string
	err          error
	streamChunks []string
	prompts      []string
	systems      []string
}

func (f *generatorFake) Generate(_ context.Context, prompt, system string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.systems = append(f.systems, system)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *generatorFake) GenerateStream(_ context.Context, prompt, system string, emit func(chunk string) error) error {
	f.prompts = append(f.prompts, prompt)
	f.systems = append(f.systems, system)
	if f.err != nil {
		return f.err
	}
	chunks := f.streamChunks
	if chunks == nil {
		chunks = []string{f.response}
	}
	for _, chunk := range chunks {
		if err := emit(chunk); err != nil {
			return err
		}
	}
	return nil
}

type cacheFake struct {
	entries map[string][]float32
	hits    int
}

func (f *cacheFake) Get(text string) ([]float32, bool) {
	vector, ok := f.entries[text]
	if ok {
		f.hits++
	}
	return vector, ok
}

func (f *cacheFake) Add(text string, vector []float32) {
	if f.entries == nil {
		f.entries = make(map[string][]float32)
	}
	f.entries[text] = vector
}

type scorerFake struct {
	scores []float64
	err    error
}

func (f *scorerFake) Score(_ context.Context, _ string, docs []string) ([]float64, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.scores != nil {
		return f.scores, nil
	}
	return make([]float64, len(docs)), nil
}

func testCollection(kbID int) string {
	return fmt.Sprintf("testkb_%d", kbID)
}
