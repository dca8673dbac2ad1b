package svc

import (
	"context"
	"time"
	"unicode/utf8"

	"codebin/cfg"
	"codebin/metrics"
	"codebin/pkg/domain"
	"codebin/svc/auth"
	"codebin/svc/cache"
	"codebin/svc/db"
	"codebin/svc/util"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"
)

const maxSaveAttempts = 5

type Paste struct {
	db       *db.SQLite
	lru      *cache.LRU
	rdb      *db.Redis
	hasher   *auth.Hasher
	loads    singleflight.Group
	idLength int
	genID    func(n int) (string, error)
	now      func() time.Time
}

// NewPaste wires the service. rdb may be nil when no shared cache is configured.
func NewPaste(sqlDB *db.SQLite, lru *cache.LRU, rdb *db.Redis, h *auth.Hasher, c *cfg.Cfg) *Paste {
	if sqlDB == nil || lru == nil || h == nil || c == nil {
		panic("paste service: nil dependency (sqlDB, lru, hasher, or cfg)")
	}
	idLength := c.IDLength
	if idLength == 0 {
		idLength = util.DefaultIDLength
	}
	return &Paste{
		db:       sqlDB,
		lru:      lru,
		rdb:      rdb,
		hasher:   h,
		idLength: idLength,
		genID:    util.NewID,
		now:      time.Now,
	}
}

// Save stores a new paste and returns it without its pin hash. A fresh id is drawn
// whenever the insert collides with an existing one, up to maxSaveAttempts times.
func (p *Paste) Save(ctx context.Context, params domain.SaveParams) (*domain.Paste, error) {
	if params.Content == "" {
		return nil, domain.ErrContentRequired
	}
	var pinHash string
	if params.Pin != "" {
		h, err := p.hasher.Hash(ctx, params.Pin)
		if errors.Is(err, auth.ErrPinTooLong) {
			return nil, domain.WithCause(domain.ErrInvalidRequest, err)
		}
		if err != nil {
			return nil, domain.WithCause(domain.ErrInternalServer, errors.Wrap(err, "hash pin"))
		}
		pinHash = h
	}
	title := truncateTitle(params.Title)
	createdAt := p.now().UTC()

	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		id, err := p.genID(p.idLength)
		if err != nil {
			return nil, domain.WithCause(domain.ErrInternalServer, errors.Wrap(err, "gen id"))
		}
		paste := &domain.Paste{
			ID:        id,
			Title:     title,
			Content:   params.Content,
			PinHash:   pinHash,
			CreatedAt: createdAt,
		}
		err = p.db.Create(ctx, paste)
		if errors.Is(err, domain.ErrIDCollision) {
			metrics.IDCollisions.Inc()
			util.Warn().Int("attempt", attempt).Msg("paste id collision, regenerating")
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "create paste")
		}
		p.lru.Add(paste)
		if p.rdb != nil {
			if err := p.rdb.CachePaste(ctx, paste); err != nil {
				util.Warn().Err(err).Str("id", id).Msg("failed to cache in Redis")
			}
		}
		metrics.PasteSaved.Inc()
		return paste.Public(), nil
	}
	return nil, domain.WithCause(domain.ErrStorage, errors.Errorf("id collision after %d attempts", maxSaveAttempts))
}

// Get returns the paste stored under id. The id is checked for syntax before any
// lookup; a protected paste additionally requires the matching pin.
func (p *Paste) Get(ctx context.Context, id, pin string) (*domain.Paste, error) {
	if !util.ValidID(id) {
		return nil, domain.ErrInvalidID
	}
	paste, err := p.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.checkAccess(ctx, paste, pin); err != nil {
		return nil, err
	}
	metrics.PasteFetched.Inc()
	return paste.Public(), nil
}

func (p *Paste) checkAccess(ctx context.Context, paste *domain.Paste, pin string) error {
	if !paste.Protected() {
		return nil
	}
	if pin == "" {
		metrics.PinRejected.Inc()
		return domain.ErrPinRejected
	}
	match, err := p.hasher.Verify(ctx, pin, paste.PinHash)
	if err != nil {
		return domain.WithCause(domain.ErrInternalServer, errors.Wrap(err, "verify pin"))
	}
	if !match {
		metrics.PinRejected.Inc()
		return domain.ErrPinRejected
	}
	return nil
}

func (p *Paste) lookup(ctx context.Context, id string) (*domain.Paste, error) {
	if paste, ok := p.lru.Get(id); ok {
		metrics.CacheLookups.WithLabelValues("lru", "hit").Inc()
		return paste, nil
	}
	metrics.CacheLookups.WithLabelValues("lru", "miss").Inc()
	// The shared load outlives any single caller; each waiter still honors its own ctx.
	ch := p.loads.DoChan(id, func() (interface{}, error) {
		return p.load(context.WithoutCancel(ctx), id)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Paste), nil
	case <-ctx.Done():
		return nil, domain.WithCause(domain.ErrStorage, errors.Wrap(ctx.Err(), "wait for load"))
	}
}

// load fills the LRU from Redis or SQLite. Concurrent misses on one id share a load.
func (p *Paste) load(ctx context.Context, id string) (*domain.Paste, error) {
	if p.rdb != nil {
		paste, err := p.rdb.GetPaste(ctx, id)
		switch {
		case err != nil:
			util.Warn().Err(err).Str("id", id).Msg("redis lookup failed, falling back to db")
		case paste != nil:
			metrics.CacheLookups.WithLabelValues("redis", "hit").Inc()
			p.lru.Add(paste)
			return paste, nil
		default:
			metrics.CacheLookups.WithLabelValues("redis", "miss").Inc()
		}
	}
	paste, err := p.db.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.lru.Add(paste)
	if p.rdb != nil {
		if err := p.rdb.CachePaste(ctx, paste); err != nil {
			util.Warn().Err(err).Str("id", id).Msg("failed to cache in Redis")
		}
	}
	return paste, nil
}

// truncateTitle keeps at most MaxTitleLength characters of title, unchanged otherwise.
// A cut that would strip combining marks off their base character backs off to the
// start of that sequence.
func truncateTitle(title string) string {
	if utf8.RuneCountInString(title) <= domain.MaxTitleLength {
		return title
	}
	cut, n := 0, 0
	for i := range title {
		if n == domain.MaxTitleLength {
			cut = i
			break
		}
		n++
	}
	head := title[:cut]
	if norm.NFC.FirstBoundaryInString(title[cut:]) != 0 {
		if b := norm.NFC.LastBoundary([]byte(head)); b > 0 {
			head = head[:b]
		}
	}
	return head
}
