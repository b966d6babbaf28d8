package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lucky-draw/internal/model"
	"lucky-draw/internal/pkg/apperr"
)

// memState is the full data set of a MemoryStore. Entities are stored by
// value so callers never alias stored state.
type memState struct {
	users          map[string]model.User
	draws          map[int64]model.Draw
	participations []model.Participation
	transactions   []model.Transaction
	winners        []model.Winner

	nextDrawID          int64
	nextParticipationID int64
	nextTransactionID   int64
	nextWinnerID        int64
}

func newMemState() *memState {
	return &memState{
		users: make(map[string]model.User),
		draws: make(map[int64]model.Draw),
	}
}

func (st *memState) clone() *memState {
	c := *st
	c.users = make(map[string]model.User, len(st.users))
	for k, v := range st.users {
		c.users[k] = v
	}
	c.draws = make(map[int64]model.Draw, len(st.draws))
	for k, v := range st.draws {
		c.draws[k] = v
	}
	c.participations = append([]model.Participation(nil), st.participations...)
	c.transactions = append([]model.Transaction(nil), st.transactions...)
	c.winners = append([]model.Winner(nil), st.winners...)
	return &c
}

// MemoryStore provides an in-memory implementation of Store.
//
// Plain calls lock the data set for their own duration. WithinTx holds the
// write lock for the whole callback and applies its writes to a private copy
// that replaces the data set only when the callback succeeds.
type MemoryStore struct {
	mu   *sync.RWMutex
	st   *memState
	now  func() time.Time
	root *MemoryStore
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{mu: &sync.RWMutex{}, st: newMemState(), now: time.Now}
	return s
}

// WithClock sets the clock used for store-assigned timestamps.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) inTx() bool {
	return s.root != nil
}

func (s *MemoryStore) read(fn func(st *memState) error) error {
	if !s.inTx() {
		s.mu.RLock()
		defer s.mu.RUnlock()
	}
	return fn(s.st)
}

func (s *MemoryStore) write(fn func(st *memState) error) error {
	if !s.inTx() {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return fn(s.st)
}

// WithinTx runs fn against a staged copy of the data set.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.inTx() {
		return fn(ctx, s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &MemoryStore{mu: s.mu, st: s.st.clone(), now: s.now, root: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	s.st = tx.st
	return nil
}

func (s *MemoryStore) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

// ========== Users ==========

// GetUser retrieves a user by id.
func (s *MemoryStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	var out *model.User
	err := s.read(func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return apperr.NotFound("user", id)
		}
		out = &u
		return nil
	})
	return out, err
}

// GetUserForUpdate retrieves a user by id. Row locking is implied by WithinTx.
func (s *MemoryStore) GetUserForUpdate(ctx context.Context, id string) (*model.User, error) {
	return s.GetUser(ctx, id)
}

// UpsertUser creates a user or refreshes its profile fields.
func (s *MemoryStore) UpsertUser(ctx context.Context, profile *model.User, initialBalance int64) (*model.User, bool, error) {
	var (
		out     *model.User
		created bool
	)
	err := s.write(func(st *memState) error {
		now := s.now()
		u, ok := st.users[profile.ID]
		if !ok {
			u = model.User{ID: profile.ID, CoinBalance: initialBalance, CreatedAt: now}
			created = true
		}
		u.Email = profile.Email
		u.FirstName = profile.FirstName
		u.LastName = profile.LastName
		u.ProfileImageURL = profile.ProfileImageURL
		u.UpdatedAt = now
		st.users[u.ID] = u
		out = &u
		return nil
	})
	return out, created, err
}

func (s *MemoryStore) updateUser(id string, fn func(u *model.User) error) (*model.User, error) {
	var out *model.User
	err := s.write(func(st *memState) error {
		u, ok := st.users[id]
		if !ok {
			return apperr.NotFound("user", id)
		}
		if err := fn(&u); err != nil {
			return err
		}
		u.UpdatedAt = s.now()
		st.users[id] = u
		out = &u
		return nil
	})
	return out, err
}

// AdjustUserBalance adds delta to the user's balance, refusing to go negative.
func (s *MemoryStore) AdjustUserBalance(ctx context.Context, id string, delta int64) (*model.User, error) {
	return s.updateUser(id, func(u *model.User) error {
		if u.CoinBalance+delta < 0 {
			return fmt.Errorf("adjust balance of %s by %d: %w", id, delta, apperr.ErrInsufficientFunds)
		}
		u.CoinBalance += delta
		return nil
	})
}

// AddUserStats increments the user's aggregate stats.
func (s *MemoryStore) AddUserStats(ctx context.Context, id string, delta model.UserStatsDelta) (*model.User, error) {
	return s.updateUser(id, func(u *model.User) error {
		u.TotalParticipations += delta.Participations
		u.TotalWins += delta.Wins
		u.TotalEarnings = u.TotalEarnings.Add(delta.Earnings)
		return nil
	})
}

// UpdateUserCheckIn records a check-in if nobody else recorded one since expectedLast.
func (s *MemoryStore) UpdateUserCheckIn(ctx context.Context, id string, streak int, at time.Time, expectedLast *time.Time) (*model.User, error) {
	return s.updateUser(id, func(u *model.User) error {
		if !sameInstant(u.LastCheckIn, expectedLast) {
			return fmt.Errorf("check-in of %s changed concurrently: %w", id, apperr.ErrConflict)
		}
		u.CurrentStreak = streak
		u.LastCheckIn = &at
		return nil
	})
}

// SetUserVIP sets the VIP flag.
func (s *MemoryStore) SetUserVIP(ctx context.Context, id string, vip bool) (*model.User, error) {
	return s.updateUser(id, func(u *model.User) error {
		u.IsVIP = vip
		return nil
	})
}

// ListTopEarners retrieves the top N users by total earnings.
func (s *MemoryStore) ListTopEarners(ctx context.Context, limit int) ([]*model.User, error) {
	var out []*model.User
	err := s.read(func(st *memState) error {
		for _, u := range st.users {
			u := u
			out = append(out, &u)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalEarnings.Cmp(out[j].TotalEarnings); c != 0 {
			return c > 0
		}
		if out[i].TotalWins != out[j].TotalWins {
			return out[i].TotalWins > out[j].TotalWins
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// ========== Draws ==========

// CreateDraw inserts a new draw.
func (s *MemoryStore) CreateDraw(ctx context.Context, draw *model.Draw) (*model.Draw, error) {
	var out *model.Draw
	err := s.write(func(st *memState) error {
		st.nextDrawID++
		d := *draw
		d.ID = st.nextDrawID
		d.CurrentParticipants = 0
		d.IsCompleted = false
		d.WinnerID = nil
		d.CreatedAt = s.now()
		st.draws[d.ID] = d
		out = &d
		return nil
	})
	return out, err
}

// GetDraw retrieves a draw by id.
func (s *MemoryStore) GetDraw(ctx context.Context, id int64) (*model.Draw, error) {
	var out *model.Draw
	err := s.read(func(st *memState) error {
		d, ok := st.draws[id]
		if !ok {
			return apperr.NotFound("draw", id)
		}
		out = &d
		return nil
	})
	return out, err
}

// GetDrawForUpdate retrieves a draw by id. Row locking is implied by WithinTx.
func (s *MemoryStore) GetDrawForUpdate(ctx context.Context, id int64) (*model.Draw, error) {
	return s.GetDraw(ctx, id)
}

func (s *MemoryStore) filterDraws(keep func(d *model.Draw) bool) ([]*model.Draw, error) {
	var out []*model.Draw
	err := s.read(func(st *memState) error {
		for _, d := range st.draws {
			d := d
			if keep(&d) {
				out = append(out, &d)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DrawTime.Equal(out[j].DrawTime) {
			return out[i].DrawTime.Before(out[j].DrawTime)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

// ListActiveDraws returns draws that are still accepting or awaiting settlement.
func (s *MemoryStore) ListActiveDraws(ctx context.Context) ([]*model.Draw, error) {
	return s.filterDraws(func(d *model.Draw) bool {
		return d.IsActive && !d.IsCompleted
	})
}

// ListDueDraws returns draws whose resolution instant has been reached.
func (s *MemoryStore) ListDueDraws(ctx context.Context, now time.Time) ([]*model.Draw, error) {
	return s.filterDraws(func(d *model.Draw) bool {
		return d.IsActive && !d.IsCompleted && !d.DrawTime.After(now)
	})
}

func (s *MemoryStore) updateDraw(id int64, fn func(d *model.Draw) error) (*model.Draw, error) {
	var out *model.Draw
	err := s.write(func(st *memState) error {
		d, ok := st.draws[id]
		if !ok {
			return apperr.NotFound("draw", id)
		}
		if err := fn(&d); err != nil {
			return err
		}
		st.draws[id] = d
		out = &d
		return nil
	})
	return out, err
}

// IncrementDrawParticipants adds one participant under the capacity guard.
func (s *MemoryStore) IncrementDrawParticipants(ctx context.Context, id int64) (*model.Draw, error) {
	return s.updateDraw(id, func(d *model.Draw) error {
		if d.IsCompleted {
			return fmt.Errorf("draw %d: %w", id, apperr.ErrDrawUnavailable)
		}
		if d.IsFull() {
			return fmt.Errorf("draw %d: %w", id, apperr.ErrDrawFull)
		}
		d.CurrentParticipants++
		return nil
	})
}

// CompleteDraw marks the draw completed. Only the first call succeeds.
func (s *MemoryStore) CompleteDraw(ctx context.Context, id int64, winnerID string) (*model.Draw, error) {
	return s.updateDraw(id, func(d *model.Draw) error {
		if d.IsCompleted {
			return fmt.Errorf("draw %d: %w", id, apperr.ErrAlreadyCompleted)
		}
		d.IsCompleted = true
		d.WinnerID = &winnerID
		return nil
	})
}

// SetDrawActive toggles the admin availability flag.
func (s *MemoryStore) SetDrawActive(ctx context.Context, id int64, active bool) (*model.Draw, error) {
	return s.updateDraw(id, func(d *model.Draw) error {
		d.IsActive = active
		return nil
	})
}

// ========== Participations ==========

// CreateParticipation inserts a new draw entry.
func (s *MemoryStore) CreateParticipation(ctx context.Context, p *model.Participation) (*model.Participation, error) {
	var out *model.Participation
	err := s.write(func(st *memState) error {
		if _, ok := st.users[p.UserID]; !ok {
			return apperr.Invalid("participation references unknown user %s", p.UserID)
		}
		if _, ok := st.draws[p.DrawID]; !ok {
			return apperr.Invalid("participation references unknown draw %d", p.DrawID)
		}
		st.nextParticipationID++
		row := *p
		row.ID = st.nextParticipationID
		row.ParticipatedAt = s.stamp(p.ParticipatedAt)
		st.participations = append(st.participations, row)
		out = &row
		return nil
	})
	return out, err
}

// ListDrawParticipations returns all entries of a draw in insertion order.
func (s *MemoryStore) ListDrawParticipations(ctx context.Context, drawID int64) ([]*model.Participation, error) {
	var out []*model.Participation
	err := s.read(func(st *memState) error {
		for _, p := range st.participations {
			p := p
			if p.DrawID == drawID {
				out = append(out, &p)
			}
		}
		return nil
	})
	return out, err
}

// ListUserParticipations returns all entries of a user, newest first.
func (s *MemoryStore) ListUserParticipations(ctx context.Context, userID string) ([]*model.Participation, error) {
	var out []*model.Participation
	err := s.read(func(st *memState) error {
		for i := len(st.participations) - 1; i >= 0; i-- {
			p := st.participations[i]
			if p.UserID == userID {
				out = append(out, &p)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ParticipatedAt.After(out[j].ParticipatedAt)
	})
	return out, err
}

// CountUserDrawParticipations counts how many times a user entered a draw.
func (s *MemoryStore) CountUserDrawParticipations(ctx context.Context, userID string, drawID int64) (int, error) {
	var count int
	err := s.read(func(st *memState) error {
		for _, p := range st.participations {
			if p.UserID == userID && p.DrawID == drawID {
				count++
			}
		}
		return nil
	})
	return count, err
}

// ========== Transactions ==========

// CreateTransaction appends a ledger entry.
func (s *MemoryStore) CreateTransaction(ctx context.Context, tx *model.Transaction) (*model.Transaction, error) {
	var out *model.Transaction
	err := s.write(func(st *memState) error {
		if _, ok := st.users[tx.UserID]; !ok {
			return apperr.Invalid("transaction references unknown user %s", tx.UserID)
		}
		if tx.Amount <= 0 {
			return apperr.Invalid("transaction amount must be positive, got %d", tx.Amount)
		}
		st.nextTransactionID++
		row := *tx
		row.ID = st.nextTransactionID
		row.CreatedAt = s.stamp(tx.CreatedAt)
		st.transactions = append(st.transactions, row)
		out = &row
		return nil
	})
	return out, err
}

// ListUserTransactions retrieves transactions for a user, newest first.
func (s *MemoryStore) ListUserTransactions(ctx context.Context, userID string, limit int) ([]*model.Transaction, error) {
	var out []*model.Transaction
	err := s.read(func(st *memState) error {
		for i := len(st.transactions) - 1; i >= 0; i-- {
			tx := st.transactions[i]
			if tx.UserID == userID {
				out = append(out, &tx)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

// ========== Winners ==========

// CreateWinner inserts the winner announcement of a draw.
func (s *MemoryStore) CreateWinner(ctx context.Context, w *model.Winner) (*model.Winner, error) {
	var out *model.Winner
	err := s.write(func(st *memState) error {
		for _, existing := range st.winners {
			if existing.DrawID == w.DrawID {
				return fmt.Errorf("winner for draw %d: %w", w.DrawID, apperr.ErrConflict)
			}
		}
		st.nextWinnerID++
		row := *w
		row.ID = st.nextWinnerID
		row.AnnouncedAt = s.stamp(w.AnnouncedAt)
		st.winners = append(st.winners, row)
		out = &row
		return nil
	})
	return out, err
}

// GetWinnerByDraw retrieves the winner row of a draw.
func (s *MemoryStore) GetWinnerByDraw(ctx context.Context, drawID int64) (*model.Winner, error) {
	var out *model.Winner
	err := s.read(func(st *memState) error {
		for _, w := range st.winners {
			if w.DrawID == drawID {
				w := w
				out = &w
				return nil
			}
		}
		return apperr.NotFound("winner for draw", drawID)
	})
	return out, err
}

// MarkWinnerStatsApplied records that the winner's stats were updated.
func (s *MemoryStore) MarkWinnerStatsApplied(ctx context.Context, id int64) (bool, error) {
	var flipped bool
	err := s.write(func(st *memState) error {
		for i := range st.winners {
			if st.winners[i].ID == id {
				flipped = !st.winners[i].StatsApplied
				st.winners[i].StatsApplied = true
				return nil
			}
		}
		return apperr.NotFound("winner", id)
	})
	return flipped, err
}

// ListRecentWinners returns winners joined with their user and draw, newest first.
func (s *MemoryStore) ListRecentWinners(ctx context.Context, limit int) ([]*model.WinnerDetail, error) {
	var out []*model.WinnerDetail
	err := s.read(func(st *memState) error {
		for _, w := range st.winners {
			u, okUser := st.users[w.UserID]
			d, okDraw := st.draws[w.DrawID]
			if !okUser || !okDraw {
				continue
			}
			out = append(out, &model.WinnerDetail{Winner: w, User: u, Draw: d})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AnnouncedAt.Equal(out[j].AnnouncedAt) {
			return out[i].AnnouncedAt.After(out[j].AnnouncedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

// Compile-time interface checks.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
