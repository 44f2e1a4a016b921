package reldb

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/reldb/reldb/pkg/lrucache"
)

const (
	headerMagic      = uint32(0x52454C44) // "RELD"
	fileHeaderSize   = 4 + 4 + 4 + 4 + 8
	defaultCacheSize = 256
)

// DBFile is the subset of *os.File the pager needs. Tests may substitute
// any seekable random access file.
type DBFile interface {
	io.ReaderAt
	io.WriterAt
	io.Seeker
	Sync() error
}

// fileHeader lives at the start of page 0. The rest of page 0 is unused.
type fileHeader struct {
	Magic        uint32
	PageSize     uint32
	FreeListHead uint32 // 0 means the free list is empty
	CatalogRoot  uint32 // 0 means the catalog tree has not been created yet
	NextRowID    uint64
}

func (h *fileHeader) Marshal(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.PageSize)
	binary.LittleEndian.PutUint32(buf[8:12], h.FreeListHead)
	binary.LittleEndian.PutUint32(buf[12:16], h.CatalogRoot)
	binary.LittleEndian.PutUint64(buf[16:24], h.NextRowID)
}

func (h *fileHeader) Unmarshal(buf []byte) error {
	if len(buf) < fileHeaderSize {
		return fmt.Errorf("file header too short: %d bytes", len(buf))
	}
	h.Magic = binary.LittleEndian.Uint32(buf[0:4])
	h.PageSize = binary.LittleEndian.Uint32(buf[4:8])
	h.FreeListHead = binary.LittleEndian.Uint32(buf[8:12])
	h.CatalogRoot = binary.LittleEndian.Uint32(buf[12:16])
	h.NextRowID = binary.LittleEndian.Uint64(buf[16:24])
	if h.Magic != headerMagic {
		return fmt.Errorf("unrecognised file magic %x", h.Magic)
	}
	return nil
}

// freePageNext reads the next-pointer of a page on the free list.
func freePageNext(buf []byte) (uint32, error) {
	if buf[0] != pageTypeFree {
		return 0, fmt.Errorf("invalid free page type byte %d", buf[0])
	}
	return binary.LittleEndian.Uint32(buf[1:5]), nil
}

func marshalFreePage(buf []byte, next uint32) {
	for i := range buf {
		buf[i] = 0
	}
	buf[0] = pageTypeFree
	binary.LittleEndian.PutUint32(buf[1:5], next)
}

// Pager allocates, reads, writes and frees fixed-size pages over a single
// file. Every write goes straight through to the file; the internal cache
// only serves reads.
type Pager struct {
	file       DBFile
	pageSize   int
	totalPages uint32
	header     fileHeader
	cache      *lrucache.Cache[uint32, []byte]
	syncWrites bool
	logger     *zap.Logger
	mu         sync.Mutex
}

type PagerOption func(*Pager)

// WithSyncWrites controls whether every page write is fsynced before
// returning. On by default; tests turn it off for speed.
func WithSyncWrites(sync bool) PagerOption {
	return func(p *Pager) {
		p.syncWrites = sync
	}
}

func WithCacheSize(size int) PagerOption {
	return func(p *Pager) {
		p.cache = lrucache.New[uint32, []byte](size)
	}
}

// OpenPager opens the database file, reading the file header or, for an
// empty file, initialising page 0.
func OpenPager(logger *zap.Logger, file DBFile, opts ...PagerOption) (*Pager, error) {
	aPager := &Pager{
		file:       file,
		pageSize:   PageSize,
		cache:      lrucache.New[uint32, []byte](defaultCacheSize),
		syncWrites: true,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(aPager)
	}

	fileSize, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("open pager: %w", err)
	}
	if fileSize%int64(aPager.pageSize) != 0 {
		return nil, fmt.Errorf("db file size %d is not divisible by page size %d", fileSize, aPager.pageSize)
	}
	aPager.totalPages = uint32(fileSize / int64(aPager.pageSize))

	if aPager.totalPages == 0 {
		// Fresh database, write the header page
		aPager.header = fileHeader{
			Magic:    headerMagic,
			PageSize: uint32(aPager.pageSize),
		}
		aPager.totalPages = 1
		if err := aPager.writeHeader(); err != nil {
			return nil, err
		}
		return aPager, nil
	}

	buf := make([]byte, fileHeaderSize)
	if _, err := file.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("read file header: %w", err)
	}
	if err := aPager.header.Unmarshal(buf); err != nil {
		return nil, err
	}
	if int(aPager.header.PageSize) != aPager.pageSize {
		return nil, fmt.Errorf("file page size %d does not match engine page size %d", aPager.header.PageSize, aPager.pageSize)
	}

	return aPager, nil
}

func (p *Pager) TotalPages() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalPages
}

func (p *Pager) CatalogRoot() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.header.CatalogRoot
}

func (p *Pager) SetCatalogRoot(ctx context.Context, pageNum uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.header.CatalogRoot = pageNum
	return p.writeHeader()
}

// NextRowID returns a fresh monotonic row ID and persists the counter.
func (p *Pager) NextRowID(ctx context.Context) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.header.NextRowID += 1
	if err := p.writeHeader(); err != nil {
		return 0, err
	}
	return p.header.NextRowID, nil
}

// AllocatePage returns a usable page number, reusing the free list head
// before extending the file.
func (p *Pager) AllocatePage(ctx context.Context) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.header.FreeListHead != 0 {
		pageNum := p.header.FreeListHead
		buf, err := p.readPage(pageNum)
		if err != nil {
			return 0, fmt.Errorf("allocate page: %w", err)
		}
		next, err := freePageNext(buf)
		if err != nil {
			return 0, fmt.Errorf("allocate page %d: %w", pageNum, err)
		}
		p.header.FreeListHead = next
		if err := p.writeHeader(); err != nil {
			return 0, err
		}
		p.logger.Sugar().With("page", pageNum).Debug("reusing free page")
		return pageNum, nil
	}

	pageNum := p.totalPages
	if err := p.writePage(pageNum, make([]byte, p.pageSize)); err != nil {
		return 0, fmt.Errorf("allocate page: %w", err)
	}
	p.totalPages = pageNum + 1
	p.logger.Sugar().With("page", pageNum).Debug("extended file with new page")
	return pageNum, nil
}

// ReadPage returns a copy of the page contents.
func (p *Pager) ReadPage(ctx context.Context, pageNum uint32) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pageNum == 0 || pageNum >= p.totalPages {
		return nil, fmt.Errorf("read page %d of %d: %w", pageNum, p.totalPages, ErrInvalidPage)
	}
	return p.readPage(pageNum)
}

// WritePage persists a whole page before returning.
func (p *Pager) WritePage(ctx context.Context, pageNum uint32, buf []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pageNum == 0 || pageNum >= p.totalPages {
		return fmt.Errorf("write page %d of %d: %w", pageNum, p.totalPages, ErrInvalidPage)
	}
	return p.writePage(pageNum, buf)
}

// FreePage pushes the page onto the free list.
func (p *Pager) FreePage(ctx context.Context, pageNum uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pageNum == 0 || pageNum >= p.totalPages {
		return fmt.Errorf("free page %d of %d: %w", pageNum, p.totalPages, ErrInvalidPage)
	}

	buf := make([]byte, p.pageSize)
	marshalFreePage(buf, p.header.FreeListHead)
	if err := p.writePage(pageNum, buf); err != nil {
		return fmt.Errorf("free page %d: %w", pageNum, err)
	}
	p.header.FreeListHead = pageNum
	if err := p.writeHeader(); err != nil {
		return err
	}
	p.logger.Sugar().With("page", pageNum).Debug("freed page")
	return nil
}

// Close flushes the file. The pager never buffers dirty pages so there is
// nothing else to do.
func (p *Pager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.file.Sync()
}

func (p *Pager) readPage(pageNum uint32) ([]byte, error) {
	if cached, ok := p.cache.Get(pageNum); ok {
		buf := make([]byte, p.pageSize)
		copy(buf, cached)
		return buf, nil
	}

	buf := make([]byte, p.pageSize)
	offset := int64(pageNum) * int64(p.pageSize)
	if _, err := p.file.ReadAt(buf, offset); err != nil {
		return nil, fmt.Errorf("read page %d: %w", pageNum, err)
	}

	cached := make([]byte, p.pageSize)
	copy(cached, buf)
	p.cache.Put(pageNum, cached)

	return buf, nil
}

func (p *Pager) writePage(pageNum uint32, buf []byte) error {
	if len(buf) != p.pageSize {
		return fmt.Errorf("write page %d: buffer size %d, want %d", pageNum, len(buf), p.pageSize)
	}
	offset := int64(pageNum) * int64(p.pageSize)
	if _, err := p.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("write page %d: %w", pageNum, err)
	}
	if p.syncWrites {
		if err := p.file.Sync(); err != nil {
			return fmt.Errorf("sync page %d: %w", pageNum, err)
		}
	}

	cached := make([]byte, p.pageSize)
	copy(cached, buf)
	p.cache.Put(pageNum, cached)

	return nil
}

func (p *Pager) writeHeader() error {
	buf := make([]byte, p.pageSize)
	p.header.Marshal(buf)
	offset := int64(0)
	if _, err := p.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("write file header: %w", err)
	}
	if p.syncWrites {
		if err := p.file.Sync(); err != nil {
			return fmt.Errorf("sync file header: %w", err)
		}
	}
	return nil
}
