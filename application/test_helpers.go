package application

import (
	"context"
	"sync"

	"raffler/domain/entities"
	"raffler/domain/interfaces"
)

// memoryStore is an in-memory raffle store used by application tests. The
// store-level lock is held from Begin to Commit/Rollback, mirroring the
// per-key serialization the Postgres row lock provides in production.
type memoryStore struct {
	mu       sync.Mutex
	raffles  map[int64]*entities.Raffle
	settings map[int64]*entities.GuildSettings
}

// NewMemoryUnitOfWorkFactory creates a unit of work factory backed by an
// in-memory store, for tests that exercise scheduling and teardown without
// a database.
func NewMemoryUnitOfWorkFactory() UnitOfWorkFactory {
	return &memoryUowFactory{
		store: &memoryStore{
			raffles:  make(map[int64]*entities.Raffle),
			settings: make(map[int64]*entities.GuildSettings),
		},
	}
}

type memoryUowFactory struct {
	store *memoryStore
}

func (f *memoryUowFactory) CreateForGuild(guildID int64) UnitOfWork {
	return &memoryUnitOfWork{store: f.store, guildID: guildID}
}

type memoryUnitOfWork struct {
	store   *memoryStore
	guildID int64
	active  bool
}

func (u *memoryUnitOfWork) Begin(ctx context.Context) error {
	u.store.mu.Lock()
	u.active = true
	return nil
}

func (u *memoryUnitOfWork) Commit() error {
	if u.active {
		u.active = false
		u.store.mu.Unlock()
	}
	return nil
}

func (u *memoryUnitOfWork) Rollback() error {
	if u.active {
		u.active = false
		u.store.mu.Unlock()
	}
	return nil
}

func (u *memoryUnitOfWork) RaffleRepository() interfaces.RaffleRepository {
	return &memoryRaffleRepository{uow: u}
}

func (u *memoryUnitOfWork) GuildSettingsRepository() interfaces.GuildSettingsRepository {
	return &memoryGuildSettingsRepository{uow: u}
}

type memoryRaffleRepository struct {
	uow *memoryUnitOfWork
}

func (r *memoryRaffleRepository) Create(ctx context.Context, raffle *entities.Raffle) error {
	r.uow.store.raffles[raffle.MessageID] = raffle
	return nil
}

func (r *memoryRaffleRepository) GetByMessageID(ctx context.Context, messageID int64) (*entities.Raffle, error) {
	return r.uow.store.raffles[messageID], nil
}

func (r *memoryRaffleRepository) GetByMessageIDForUpdate(ctx context.Context, messageID int64) (*entities.Raffle, error) {
	return r.uow.store.raffles[messageID], nil
}

func (r *memoryRaffleRepository) GetActiveByGuild(ctx context.Context) ([]*entities.Raffle, error) {
	var raffles []*entities.Raffle
	for _, raffle := range r.uow.store.raffles {
		if raffle.GuildID == r.uow.guildID {
			raffles = append(raffles, raffle)
		}
	}
	return raffles, nil
}

func (r *memoryRaffleRepository) GetAll(ctx context.Context) ([]*entities.Raffle, error) {
	raffles := make([]*entities.Raffle, 0, len(r.uow.store.raffles))
	for _, raffle := range r.uow.store.raffles {
		raffles = append(raffles, raffle)
	}
	return raffles, nil
}

func (r *memoryRaffleRepository) Delete(ctx context.Context, messageID int64) error {
	delete(r.uow.store.raffles, messageID)
	return nil
}

type memoryGuildSettingsRepository struct {
	uow *memoryUnitOfWork
}

func (r *memoryGuildSettingsRepository) GetOrCreateGuildSettings(ctx context.Context, guildID int64) (*entities.GuildSettings, error) {
	if settings, ok := r.uow.store.settings[guildID]; ok {
		return settings, nil
	}
	settings := &entities.GuildSettings{GuildID: guildID}
	r.uow.store.settings[guildID] = settings
	return settings, nil
}

func (r *memoryGuildSettingsRepository) UpdateGuildSettings(ctx context.Context, settings *entities.GuildSettings) error {
	r.uow.store.settings[settings.GuildID] = settings
	return nil
}

// FakeEntryCollector implements EntryCollector for tests
type FakeEntryCollector struct {
	mu       sync.Mutex
	Entrants []*entities.Entrant
	Err      error
	calls    int
}

func (f *FakeEntryCollector) Collect(ctx context.Context, guildID, channelID, messageID int64) ([]*entities.Entrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Entrants, nil
}

// Calls returns how many times Collect was invoked
func (f *FakeEntryCollector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// RecordingPoster implements RafflePoster for tests, capturing each
// announcement it receives
type RecordingPoster struct {
	mu             sync.Mutex
	WinnerPosts    [][]*entities.Entrant
	NoEntryPosts   []*entities.Raffle
	FailurePosts   []*entities.Raffle
	PostWinnersErr error
}

func (p *RecordingPoster) PostWinners(ctx context.Context, raffle *entities.Raffle, winners []*entities.Entrant) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PostWinnersErr != nil {
		return p.PostWinnersErr
	}
	p.WinnerPosts = append(p.WinnerPosts, winners)
	return nil
}

func (p *RecordingPoster) PostNoValidEntries(ctx context.Context, raffle *entities.Raffle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.NoEntryPosts = append(p.NoEntryPosts, raffle)
	return nil
}

func (p *RecordingPoster) PostDrawFailure(ctx context.Context, raffle *entities.Raffle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.FailurePosts = append(p.FailurePosts, raffle)
	return nil
}

// Counts returns the number of winner, no-entry, and failure posts
func (p *RecordingPoster) Counts() (winners, noEntries, failures int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.WinnerPosts), len(p.NoEntryPosts), len(p.FailurePosts)
}
