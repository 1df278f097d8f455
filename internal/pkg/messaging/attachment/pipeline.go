package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/5h1ro0o/recherche-auto-sub000/internal/pkg/messaging/domain"
)

// Uploader is the external REST collaborator that stores one file and
// returns its remote reference.
type Uploader interface {
	Upload(ctx context.Context, file File) (domain.AttachmentRef, error)
}

// File is a locally selected file waiting to be uploaded.
type File struct {
	Name    string
	Size    int64
	Content io.Reader
}

// Status of a draft within the pipeline.
type Status int

const (
	StatusPending Status = iota
	StatusUploading
	StatusSucceeded
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusUploading:
		return "uploading"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// DefaultMaxFileSize is the upload ceiling applied when the pipeline is
// constructed with a non-positive limit.
const DefaultMaxFileSize = 10 << 20 // 10 MiB

var (
	// ErrTooLarge rejects a file at enqueue time; oversized files are never
	// queued.
	ErrTooLarge = errors.New("attachment: file exceeds size limit")
	// ErrRemoved resolves drafts the user discarded before upload started.
	ErrRemoved = errors.New("attachment: draft removed")
	// ErrClosed resolves drafts still queued when the pipeline shut down.
	ErrClosed = errors.New("attachment: pipeline closed")
)

// Draft tracks one file through the pipeline. Each draft settles exactly
// once, to a remote reference or a failure, independently of every other
// draft.
type Draft struct {
	file File

	mu      sync.Mutex
	status  Status
	ref     domain.AttachmentRef
	err     error
	removed bool
	done    chan struct{}
}

// Status returns the draft's current state.
func (d *Draft) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// Resolved returns the remote reference without blocking. ok is false until
// the upload has succeeded.
func (d *Draft) Resolved() (ref domain.AttachmentRef, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ref, d.status == StatusSucceeded
}

// Await blocks until the draft settles or ctx expires, then returns the
// remote reference or the failure reason.
func (d *Draft) Await(ctx context.Context) (domain.AttachmentRef, error) {
	select {
	case <-ctx.Done():
		return domain.AttachmentRef{}, ctx.Err()
	case <-d.done:
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ref, d.err
}

func (d *Draft) settle(ref domain.AttachmentRef, err error) {
	d.mu.Lock()
	if err != nil {
		d.status = StatusFailed
		d.err = err
	} else {
		d.status = StatusSucceeded
		d.ref = ref
	}
	d.mu.Unlock()
	close(d.done)
}

// Pipeline uploads selected files one at a time in submission order. One
// file's failure is its own outcome; the files behind it still run.
type Pipeline struct {
	uploader Uploader
	maxSize  int64
	log      *zap.Logger

	queue  chan *Draft
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex // serializes Enqueue against Close
	closed bool
}

// NewPipeline constructs the pipeline and starts its single worker.
// maxSize <= 0 applies DefaultMaxFileSize.
func NewPipeline(uploader Uploader, maxSize int64, log *zap.Logger) *Pipeline {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pipeline{
		uploader: uploader,
		maxSize:  maxSize,
		log:      log,
		queue:    make(chan *Draft, 128),
		cancel:   cancel,
	}
	p.wg.Add(1)
	go p.run(ctx)
	return p
}

// Enqueue validates and queues a file. Oversized files are rejected here
// and never enter the queue. After Close, Enqueue returns ErrClosed.
func (p *Pipeline) Enqueue(file File) (*Draft, error) {
	if file.Size > p.maxSize {
		return nil, fmt.Errorf("%w: %q is %d bytes, limit %d", ErrTooLarge, file.Name, file.Size, p.maxSize)
	}

	d := &Draft{file: file, done: make(chan struct{})}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	select {
	case p.queue <- d:
		return d, nil
	default:
		return nil, errors.New("attachment: upload queue full")
	}
}

// Remove abandons a draft the user discarded before sending. A draft already
// uploading runs to completion; its result is simply never consumed.
func (p *Pipeline) Remove(d *Draft) {
	d.mu.Lock()
	if d.status == StatusPending {
		d.removed = true
	}
	d.mu.Unlock()
}

// Close stops the worker. Queued drafts settle with ErrClosed. Idempotent.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		p.cancel()
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pipeline) run(ctx context.Context) {
	defer p.wg.Done()
	for d := range p.queue {
		if ctx.Err() != nil {
			d.settle(domain.AttachmentRef{}, ErrClosed)
			continue
		}

		d.mu.Lock()
		if d.removed {
			d.mu.Unlock()
			d.settle(domain.AttachmentRef{}, ErrRemoved)
			continue
		}
		d.status = StatusUploading
		d.mu.Unlock()

		ref, err := p.uploader.Upload(ctx, d.file)
		if err != nil {
			p.log.Warn("attachment upload failed",
				zap.String("filename", d.file.Name), zap.Error(err))
		}
		d.settle(ref, err)
	}
}
