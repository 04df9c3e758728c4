package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/mediaflow/model"
	"github.com/viant/mediaflow/service/dao"
	"github.com/viant/mediaflow/service/dao/criteria"
	"github.com/viant/mediaflow/service/dao/request"
)

// document is the persisted form of one request: the row and its ledger are
// kept in a single file so that one upload commits both.
type document struct {
	Request   *model.Request    `json:"request"`
	Decisions []*model.Decision `json:"decisions"`
}

// Service implements a filesystem-based request storage
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.RWMutex
	nextID   int64
	locks    map[int64]*sync.Mutex
}

// Ensure Service implements request.Store
var _ request.Store = (*Service)(nil)

// New creates a new filesystem request storage service
func New(ctx context.Context, basePath string) (*Service, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	fs := afs.New()
	exists, _ := fs.Exists(ctx, basePath)
	if !exists {
		if err := fs.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}
	ret := &Service{
		basePath: url.Normalize(basePath, file.Scheme),
		fs:       fs,
		locks:    map[int64]*sync.Mutex{},
	}
	documents, err := ret.documents(ctx)
	if err != nil {
		return nil, err
	}
	for _, doc := range documents {
		ret.locks[doc.Request.ID] = &sync.Mutex{}
		if doc.Request.ID > ret.nextID {
			ret.nextID = doc.Request.ID
		}
	}
	return ret, nil
}

// Create persists a new request with the next free ID
func (s *Service) Create(ctx context.Context, r *model.Request) error {
	if r == nil {
		return dao.ErrNilEntity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	documents, err := s.documents(ctx)
	if err != nil {
		return err
	}
	for _, doc := range documents {
		if doc.Request.Number == r.Number {
			return fmt.Errorf("%w: request number %s", dao.ErrDuplicate, r.Number)
		}
	}
	id := s.nextID + 1
	candidate := r.Clone()
	candidate.ID = id
	if err = s.upload(ctx, &document{Request: candidate}); err != nil {
		return err
	}
	s.nextID = id
	s.locks[id] = &sync.Mutex{}
	r.ID = id
	return nil
}

// Load retrieves a request from the filesystem
func (s *Service) Load(ctx context.Context, id int64) (*model.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, err := s.download(ctx, id)
	if err != nil {
		return nil, err
	}
	return doc.Request, nil
}

// List returns all matching requests, newest first
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Request, error) {
	s.mu.RLock()
	documents, err := s.documents(ctx)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	var ret []*model.Request
	for _, doc := range documents {
		if criteria.FilterByStatus(string(doc.Request.Status), parameters) {
			ret = append(ret, doc.Request)
		}
	}
	sort.Slice(ret, func(i, j int) bool {
		if ret[i].CreatedAt.Equal(ret[j].CreatedAt) {
			return ret[i].ID > ret[j].ID
		}
		return ret[i].CreatedAt.After(ret[j].CreatedAt)
	})
	return ret, nil
}

// Decisions returns the request ledger in insertion order
func (s *Service) Decisions(ctx context.Context, id int64) ([]*model.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, err := s.download(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Decisions == nil {
		return []*model.Decision{}, nil
	}
	return doc.Decisions, nil
}

// WithTx runs fn under the request lock and uploads the updated document
func (s *Service) WithTx(ctx context.Context, id int64, fn func(tx request.Tx) error) error {
	s.mu.RLock()
	lock, ok := s.locks[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: request %d", dao.ErrNotFound, id)
	}
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.download(ctx, id)
	if err != nil {
		return err
	}
	t := &tx{id: id, status: doc.Request.Status, current: doc.Request}
	if err = fn(t); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	if !t.dirty {
		return nil
	}
	doc.Request = t.current
	doc.Decisions = append(doc.Decisions, t.appended...)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upload(ctx, doc)
}

func (s *Service) documents(ctx context.Context) ([]*document, error) {
	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list request files: %w", err)
	}
	var ret []*document
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			return nil, fmt.Errorf("failed to read request file %s: %w", object.URL(), err)
		}
		doc := &document{}
		if err = json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal request file %s: %w", object.URL(), err)
		}
		if doc.Request != nil {
			ret = append(ret, doc)
		}
	}
	return ret, nil
}

func (s *Service) download(ctx context.Context, id int64) (*document, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", dao.ErrInvalidID, id)
	}
	filePath := s.requestPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to check if request exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: request %d", dao.ErrNotFound, id)
	}
	data, err := s.fs.DownloadWithURL(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}
	doc := &document{}
	if err = json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request %d: %w", id, err)
	}
	return doc, nil
}

func (s *Service) upload(ctx context.Context, doc *document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	filePath := s.requestPath(doc.Request.ID)
	if err = s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save request to file %s: %w", filePath, err)
	}
	return nil
}

// requestPath returns the file path for a request
func (s *Service) requestPath(id int64) string {
	return path.Join(s.basePath, strconv.FormatInt(id, 10)+".json")
}

type tx struct {
	id       int64
	status   model.Status
	current  *model.Request
	appended []*model.Decision
	dirty    bool
}

func (t *tx) Request() *model.Request { return t.current.Clone() }

func (t *tx) Save(r *model.Request) error {
	if r == nil {
		return dao.ErrNilEntity
	}
	if r.ID != t.id {
		return fmt.Errorf("%w: %d", dao.ErrInvalidID, r.ID)
	}
	if err := request.CheckStatusChange(t.status, r.Status); err != nil {
		return err
	}
	t.current = r.Clone()
	t.dirty = true
	return nil
}

func (t *tx) Append(d *model.Decision) error {
	if err := request.CheckDecision(t.id, d); err != nil {
		return err
	}
	decision := *d
	t.appended = append(t.appended, &decision)
	t.dirty = true
	return nil
}
