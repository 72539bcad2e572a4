package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/khelarena/economy-engine/models"
	"github.com/khelarena/economy-engine/repositories"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memDB holds all state for the in-memory repository fakes. The fake tx
// manager snapshots it before running a transaction body and restores the
// snapshot on error, so tests observe the same all-or-nothing behavior as
// the real database.
type memDB struct {
	users         map[int]*models.User
	accounts      map[int]*models.Account
	ledger        []*models.LedgerEntry
	competitions  map[int]*models.Competition
	registrations []*models.Registration
	tournaments   map[int]*models.Tournament
	teams         map[int]*models.Team
	rooms         map[int]*models.Room

	nextUserID         int
	nextLedgerID       int
	nextCompetitionID  int
	nextRegistrationID int
	nextTournamentID   int
	nextTeamID         int
	nextRoomID         int
}

func newMemDB() *memDB {
	return &memDB{
		users:              make(map[int]*models.User),
		accounts:           make(map[int]*models.Account),
		competitions:       make(map[int]*models.Competition),
		tournaments:        make(map[int]*models.Tournament),
		teams:              make(map[int]*models.Team),
		rooms:              make(map[int]*models.Room),
		nextUserID:         1,
		nextLedgerID:       1,
		nextCompetitionID:  1,
		nextRegistrationID: 1,
		nextTournamentID:   1,
		nextTeamID:         1,
		nextRoomID:         1,
	}
}

func (db *memDB) clone() *memDB {
	cp := newMemDB()
	cp.nextUserID = db.nextUserID
	cp.nextLedgerID = db.nextLedgerID
	cp.nextCompetitionID = db.nextCompetitionID
	cp.nextRegistrationID = db.nextRegistrationID
	cp.nextTournamentID = db.nextTournamentID
	cp.nextTeamID = db.nextTeamID
	cp.nextRoomID = db.nextRoomID
	for id, u := range db.users {
		v := *u
		cp.users[id] = &v
	}
	for id, a := range db.accounts {
		v := *a
		cp.accounts[id] = &v
	}
	for _, e := range db.ledger {
		v := *e
		cp.ledger = append(cp.ledger, &v)
	}
	for id, c := range db.competitions {
		v := *c
		cp.competitions[id] = &v
	}
	for _, r := range db.registrations {
		v := *r
		cp.registrations = append(cp.registrations, &v)
	}
	for id, t := range db.tournaments {
		v := *t
		cp.tournaments[id] = &v
	}
	for id, t := range db.teams {
		v := *t
		cp.teams[id] = &v
	}
	for id, room := range db.rooms {
		v := *room
		cp.rooms[id] = &v
	}
	return cp
}

// store lets repository fakes and the tx manager share the swappable
// current database.
type store struct {
	db *memDB
}

type fakeTxManager struct {
	s *store
}

func (m *fakeTxManager) WithinTx(ctx context.Context, fn func(tx repositories.SQLExecutor) error) error {
	snapshot := m.s.db.clone()
	if err := fn(nil); err != nil {
		m.s.db = snapshot
		return err
	}
	return nil
}

// --- account fake ---

type fakeAccountRepo struct{ s *store }

func (f *fakeAccountRepo) Create(_ context.Context, _ repositories.SQLExecutor, userID int) error {
	f.s.db.accounts[userID] = &models.Account{UserID: userID}
	return nil
}

func (f *fakeAccountRepo) GetByUserID(_ context.Context, userID int) (*models.Account, error) {
	a, ok := f.s.db.accounts[userID]
	if !ok {
		return nil, repositories.ErrAccountNotFound
	}
	v := *a
	return &v, nil
}

func (f *fakeAccountRepo) LockByUserID(_ context.Context, _ repositories.SQLExecutor, userID int) (*models.Account, error) {
	return f.GetByUserID(nil, userID)
}

func (f *fakeAccountRepo) ApplyDelta(_ context.Context, _ repositories.SQLExecutor, userID int, pool models.BalancePool, delta int64) error {
	a, ok := f.s.db.accounts[userID]
	if !ok {
		return repositories.ErrAccountNotFound
	}
	if pool == models.PoolWithdrawable {
		if a.WithdrawableBalance+delta < 0 {
			return repositories.ErrAccountBalanceNegative
		}
		a.WithdrawableBalance += delta
		return nil
	}
	if a.SpendableBalance+delta < 0 {
		return repositories.ErrAccountBalanceNegative
	}
	a.SpendableBalance += delta
	return nil
}

func (f *fakeAccountRepo) SetFlags(_ context.Context, _ repositories.SQLExecutor, userID int, frozen, banned bool) error {
	a, ok := f.s.db.accounts[userID]
	if !ok {
		return repositories.ErrAccountNotFound
	}
	a.Frozen = frozen
	a.Banned = banned
	return nil
}

func (f *fakeAccountRepo) CountFlagged(_ context.Context) (int, int, error) {
	var frozen, banned int
	for _, a := range f.s.db.accounts {
		if a.Frozen {
			frozen++
		}
		if a.Banned {
			banned++
		}
	}
	return frozen, banned, nil
}

// --- ledger fake ---

type fakeLedgerRepo struct{ s *store }

func (f *fakeLedgerRepo) Insert(_ context.Context, _ repositories.SQLExecutor, e *models.LedgerEntry) error {
	if _, ok := f.s.db.accounts[e.AccountID]; !ok {
		return repositories.ErrLedgerInvalidAccount
	}
	e.ID = f.s.db.nextLedgerID
	f.s.db.nextLedgerID++
	e.CreatedAt = time.Now()
	v := *e
	f.s.db.ledger = append(f.s.db.ledger, &v)
	return nil
}

func (f *fakeLedgerRepo) LockByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.LedgerEntry, error) {
	for _, e := range f.s.db.ledger {
		if e.ID == id {
			v := *e
			return &v, nil
		}
	}
	return nil, repositories.ErrLedgerEntryNotFound
}

func (f *fakeLedgerRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, from, to models.LedgerStatus) error {
	for _, e := range f.s.db.ledger {
		if e.ID == id {
			if e.Status != from {
				return repositories.ErrLedgerStatusConflict
			}
			e.Status = to
			return nil
		}
	}
	return repositories.ErrLedgerStatusConflict
}

func (f *fakeLedgerRepo) ListByAccount(_ context.Context, accountID, limit, offset int) ([]models.LedgerEntry, error) {
	entries := make([]models.LedgerEntry, 0)
	for i := len(f.s.db.ledger) - 1; i >= 0; i-- {
		if f.s.db.ledger[i].AccountID == accountID {
			entries = append(entries, *f.s.db.ledger[i])
		}
	}
	if offset >= len(entries) {
		return []models.LedgerEntry{}, nil
	}
	entries = entries[offset:]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *fakeLedgerRepo) SumEffectiveByAccountAndPool(_ context.Context, _ repositories.SQLExecutor, accountID int, pool models.BalancePool) (int64, error) {
	var sum int64
	for _, e := range f.s.db.ledger {
		if e.AccountID != accountID || e.Pool != pool {
			continue
		}
		if e.Status == models.LedgerCompleted ||
			(e.Kind == models.KindWithdrawal && (e.Status == models.LedgerPending || e.Status == models.LedgerRejected)) {
			sum += e.Amount
		}
	}
	return sum, nil
}

func (f *fakeLedgerRepo) ListPendingWithdrawals(_ context.Context, limit, offset int) ([]models.LedgerEntry, error) {
	entries := make([]models.LedgerEntry, 0)
	for _, e := range f.s.db.ledger {
		if e.Kind == models.KindWithdrawal && e.Status == models.LedgerPending {
			entries = append(entries, *e)
		}
	}
	if offset >= len(entries) {
		return []models.LedgerEntry{}, nil
	}
	entries = entries[offset:]
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (f *fakeLedgerRepo) PendingWithdrawalStats(_ context.Context) (int, int64, error) {
	var count int
	var total int64
	for _, e := range f.s.db.ledger {
		if e.Kind == models.KindWithdrawal && e.Status == models.LedgerPending {
			count++
			total += -e.Amount
		}
	}
	return count, total, nil
}

// --- competition fake ---

type fakeCompetitionRepo struct{ s *store }

func (f *fakeCompetitionRepo) Create(_ context.Context, c *models.Competition) error {
	c.ID = f.s.db.nextCompetitionID
	f.s.db.nextCompetitionID++
	c.CreatedAt = time.Now()
	v := *c
	f.s.db.competitions[c.ID] = &v
	return nil
}

func (f *fakeCompetitionRepo) GetByID(_ context.Context, id int) (*models.Competition, error) {
	c, ok := f.s.db.competitions[id]
	if !ok {
		return nil, repositories.ErrCompetitionNotFound
	}
	v := *c
	return &v, nil
}

func (f *fakeCompetitionRepo) LockByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Competition, error) {
	return f.GetByID(nil, id)
}

func (f *fakeCompetitionRepo) List(_ context.Context, filter repositories.ListCompetitionsFilter) ([]models.Competition, error) {
	out := make([]models.Competition, 0)
	for _, c := range f.s.db.competitions {
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.Game != nil && c.Game != *filter.Game {
			continue
		}
		if filter.OrganizerID != nil && c.OrganizerID != *filter.OrganizerID {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeCompetitionRepo) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.CompetitionStatus) error {
	c, ok := f.s.db.competitions[id]
	if !ok {
		return repositories.ErrCompetitionNotFound
	}
	c.Status = status
	return nil
}

func (f *fakeCompetitionRepo) AdjustJoinedAndPool(_ context.Context, _ repositories.SQLExecutor, id int, joinedDelta int, poolDelta int64) error {
	c, ok := f.s.db.competitions[id]
	if !ok {
		return repositories.ErrCompetitionNotFound
	}
	if c.JoinedCount+joinedDelta > c.Capacity {
		return repositories.ErrCompetitionCapacityHit
	}
	c.JoinedCount += joinedDelta
	c.CurrentPrizePool += poolDelta
	return nil
}

func (f *fakeCompetitionRepo) SetRecalculatedPool(_ context.Context, _ repositories.SQLExecutor, id int, pool int64, at time.Time) error {
	c, ok := f.s.db.competitions[id]
	if !ok {
		return repositories.ErrCompetitionNotFound
	}
	if c.PoolRecalculatedAt != nil {
		return repositories.ErrCompetitionRecalcConflict
	}
	c.CurrentPrizePool = pool
	c.PoolRecalculatedAt = &at
	return nil
}

func (f *fakeCompetitionRepo) SetRoomCredentials(_ context.Context, id int, roomID, roomPassword string) error {
	c, ok := f.s.db.competitions[id]
	if !ok {
		return repositories.ErrCompetitionNotFound
	}
	c.RoomID = &roomID
	c.RoomPassword = &roomPassword
	return nil
}

func (f *fakeCompetitionRepo) MarkWinnersDeclared(_ context.Context, _ repositories.SQLExecutor, id int, at time.Time) error {
	c, ok := f.s.db.competitions[id]
	if !ok {
		return repositories.ErrCompetitionNotFound
	}
	if c.WinnerDeclaredAt != nil {
		return repositories.ErrCompetitionDeclareConflict
	}
	c.WinnerDeclaredAt = &at
	return nil
}

func (f *fakeCompetitionRepo) MarkCancelled(_ context.Context, _ repositories.SQLExecutor, id int, reason string) error {
	c, ok := f.s.db.competitions[id]
	if !ok {
		return repositories.ErrCompetitionNotFound
	}
	c.Status = models.CompetitionCancelled
	c.CancelReason = &reason
	return nil
}

func (f *fakeCompetitionRepo) ListDueForStatusUpdate(_ context.Context, now time.Time) ([]*models.Competition, error) {
	out := make([]*models.Competition, 0)
	for _, c := range f.s.db.competitions {
		if (c.Status == models.CompetitionUpcoming && !c.StartTime.After(now)) ||
			(c.Status == models.CompetitionOngoing && !c.EndTime.After(now)) {
			v := *c
			out = append(out, &v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (f *fakeCompetitionRepo) Counts(_ context.Context) (int, int, error) {
	var total, active int
	for _, c := range f.s.db.competitions {
		total++
		if c.Status == models.CompetitionUpcoming || c.Status == models.CompetitionOngoing {
			active++
		}
	}
	return total, active, nil
}

func (f *fakeCompetitionRepo) SumEscrowedPools(_ context.Context) (int64, error) {
	var sum int64
	for _, c := range f.s.db.competitions {
		if c.Status == models.CompetitionUpcoming || c.Status == models.CompetitionOngoing {
			sum += c.CurrentPrizePool
		}
	}
	return sum, nil
}

// --- registration fake ---

type fakeRegistrationRepo struct{ s *store }

func (f *fakeRegistrationRepo) Create(_ context.Context, _ repositories.SQLExecutor, reg *models.Registration) error {
	for _, existing := range f.s.db.registrations {
		if existing.CompetitionID == reg.CompetitionID && existing.AccountID == reg.AccountID {
			return repositories.ErrRegistrationConflict
		}
	}
	reg.ID = f.s.db.nextRegistrationID
	f.s.db.nextRegistrationID++
	reg.CreatedAt = time.Now()
	v := *reg
	f.s.db.registrations = append(f.s.db.registrations, &v)
	return nil
}

func (f *fakeRegistrationRepo) FindByAccountAndCompetition(_ context.Context, _ repositories.SQLExecutor, accountID, competitionID int) (*models.Registration, error) {
	for _, reg := range f.s.db.registrations {
		if reg.AccountID == accountID && reg.CompetitionID == competitionID {
			v := *reg
			return &v, nil
		}
	}
	return nil, repositories.ErrRegistrationNotFound
}

func (f *fakeRegistrationRepo) ListByCompetition(_ context.Context, _ repositories.SQLExecutor, competitionID int) ([]models.Registration, error) {
	out := make([]models.Registration, 0)
	for _, reg := range f.s.db.registrations {
		if reg.CompetitionID == competitionID {
			out = append(out, *reg)
		}
	}
	return out, nil
}

func (f *fakeRegistrationRepo) ListByTeamName(_ context.Context, _ repositories.SQLExecutor, competitionID int, teamName string) ([]models.Registration, error) {
	out := make([]models.Registration, 0)
	for _, reg := range f.s.db.registrations {
		if reg.CompetitionID == competitionID && reg.TeamName != nil && *reg.TeamName == teamName {
			out = append(out, *reg)
		}
	}
	return out, nil
}

func (f *fakeRegistrationRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	for i, reg := range f.s.db.registrations {
		if reg.ID == id {
			f.s.db.registrations = append(f.s.db.registrations[:i], f.s.db.registrations[i+1:]...)
			return nil
		}
	}
	return repositories.ErrRegistrationNotFound
}

// --- tournament fake ---

type fakeTournamentRepo struct{ s *store }

func (f *fakeTournamentRepo) Create(_ context.Context, t *models.Tournament) error {
	t.ID = f.s.db.nextTournamentID
	f.s.db.nextTournamentID++
	t.CreatedAt = time.Now()
	v := *t
	f.s.db.tournaments[t.ID] = &v
	return nil
}

func (f *fakeTournamentRepo) GetByID(_ context.Context, id int) (*models.Tournament, error) {
	t, ok := f.s.db.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	v := *t
	return &v, nil
}

func (f *fakeTournamentRepo) LockByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return f.GetByID(nil, id)
}

func (f *fakeTournamentRepo) UpdateStage(_ context.Context, _ repositories.SQLExecutor, id int, stage models.TournamentStage) error {
	t, ok := f.s.db.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Stage = stage
	return nil
}

func (f *fakeTournamentRepo) List(_ context.Context, organizerID *int, limit, offset int) ([]models.Tournament, error) {
	out := make([]models.Tournament, 0)
	for _, t := range f.s.db.tournaments {
		if organizerID != nil && t.OrganizerID != *organizerID {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTournamentRepo) Count(_ context.Context) (int, error) {
	return len(f.s.db.tournaments), nil
}

// --- team fake ---

type fakeTeamRepo struct{ s *store }

func (f *fakeTeamRepo) Create(_ context.Context, _ repositories.SQLExecutor, t *models.Team) error {
	for _, existing := range f.s.db.teams {
		if existing.TournamentID == t.TournamentID && existing.Name == t.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	t.ID = f.s.db.nextTeamID
	f.s.db.nextTeamID++
	t.CreatedAt = time.Now()
	v := *t
	f.s.db.teams[t.ID] = &v
	return nil
}

func (f *fakeTeamRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Team, error) {
	t, ok := f.s.db.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	v := *t
	return &v, nil
}

func (f *fakeTeamRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]models.Team, error) {
	out := make([]models.Team, 0)
	for _, t := range f.s.db.teams {
		if t.TournamentID == tournamentID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTeamRepo) ListSurvivors(_ context.Context, _ repositories.SQLExecutor, tournamentID, currentRound int) ([]models.Team, error) {
	out := make([]models.Team, 0)
	for _, t := range f.s.db.teams {
		if t.TournamentID == tournamentID && t.CurrentRound == currentRound && !t.IsEliminated {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTeamRepo) Advance(_ context.Context, _ repositories.SQLExecutor, teamID, toRound int) error {
	t, ok := f.s.db.teams[teamID]
	if !ok || t.IsEliminated {
		return repositories.ErrTeamAlreadyEliminated
	}
	t.CurrentRound = toRound
	return nil
}

func (f *fakeTeamRepo) Eliminate(_ context.Context, _ repositories.SQLExecutor, teamIDs []int) (int, error) {
	affected := 0
	for _, id := range teamIDs {
		t, ok := f.s.db.teams[id]
		if ok && !t.IsEliminated {
			t.IsEliminated = true
			affected++
		}
	}
	return affected, nil
}

func (f *fakeTeamRepo) SetFinalRank(_ context.Context, _ repositories.SQLExecutor, teamID, rank int) error {
	t, ok := f.s.db.teams[teamID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.FinalRank = &rank
	return nil
}

func (f *fakeTeamRepo) CountSurvivors(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (int, error) {
	count := 0
	for _, t := range f.s.db.teams {
		if t.TournamentID == tournamentID && !t.IsEliminated {
			count++
		}
	}
	return count, nil
}

// --- room fake ---

type fakeRoomRepo struct{ s *store }

func (f *fakeRoomRepo) CreateBatch(_ context.Context, _ repositories.SQLExecutor, rooms []*models.Room) error {
	for _, room := range rooms {
		room.ID = f.s.db.nextRoomID
		f.s.db.nextRoomID++
		room.CreatedAt = time.Now()
		v := *room
		f.s.db.rooms[room.ID] = &v
	}
	return nil
}

func (f *fakeRoomRepo) GetByID(_ context.Context, id int) (*models.Room, error) {
	room, ok := f.s.db.rooms[id]
	if !ok {
		return nil, repositories.ErrRoomNotFound
	}
	v := *room
	return &v, nil
}

func (f *fakeRoomRepo) LockByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Room, error) {
	return f.GetByID(nil, id)
}

func (f *fakeRoomRepo) ListByRound(_ context.Context, _ repositories.SQLExecutor, tournamentID, roundNumber int) ([]models.Room, error) {
	out := make([]models.Room, 0)
	for _, room := range f.s.db.rooms {
		if room.TournamentID == tournamentID && room.RoundNumber == roundNumber {
			out = append(out, *room)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomNumber < out[j].RoomNumber })
	return out, nil
}

func (f *fakeRoomRepo) RoundCounts(_ context.Context, _ repositories.SQLExecutor, tournamentID, roundNumber int) (int, int, error) {
	var total, completed int
	for _, room := range f.s.db.rooms {
		if room.TournamentID == tournamentID && room.RoundNumber == roundNumber {
			total++
			if room.Status == models.RoomCompleted {
				completed++
			}
		}
	}
	return total, completed, nil
}

func (f *fakeRoomRepo) SetCredentials(_ context.Context, _ repositories.SQLExecutor, roomID int, credID, credPass string, scheduled *time.Time) error {
	room, ok := f.s.db.rooms[roomID]
	if !ok {
		return repositories.ErrRoomNotFound
	}
	if room.Status != models.RoomWaiting {
		return repositories.ErrRoomStatusConflict
	}
	room.CredentialID = &credID
	room.CredentialPass = &credPass
	room.ScheduledTime = scheduled
	room.Status = models.RoomCredentialsSet
	return nil
}

func (f *fakeRoomRepo) SetWinner(_ context.Context, _ repositories.SQLExecutor, roomID, teamID int) error {
	room, ok := f.s.db.rooms[roomID]
	if !ok {
		return repositories.ErrRoomNotFound
	}
	if room.WinnerTeamID != nil || room.Status != models.RoomCredentialsSet {
		return repositories.ErrRoomWinnerConflict
	}
	room.WinnerTeamID = &teamID
	room.Status = models.RoomCompleted
	return nil
}

// --- user fake ---

type fakeUserRepo struct{ s *store }

func (f *fakeUserRepo) Create(_ context.Context, _ repositories.SQLExecutor, u *models.User) error {
	for _, existing := range f.s.db.users {
		if existing.Email == u.Email {
			return repositories.ErrUserEmailConflict
		}
		if existing.Nickname == u.Nickname {
			return repositories.ErrUserNicknameConflict
		}
	}
	u.ID = f.s.db.nextUserID
	f.s.db.nextUserID++
	u.CreatedAt = time.Now()
	v := *u
	f.s.db.users[u.ID] = &v
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	u, ok := f.s.db.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	v := *u
	return &v, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.s.db.users {
		if u.Email == email {
			v := *u
			return &v, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUserRepo) Count(_ context.Context) (int, error) {
	return len(f.s.db.users), nil
}

// --- shared test fixtures ---

type recordedEvent struct {
	Topic   string
	Event   string
	Payload interface{}
}

type recordingNotifier struct {
	events []recordedEvent
}

func (n *recordingNotifier) Notify(topic, event string, payload interface{}) {
	n.events = append(n.events, recordedEvent{Topic: topic, Event: event, Payload: payload})
}

// env wires every fake against one store.
type env struct {
	store        *store
	tx           *fakeTxManager
	users        *fakeUserRepo
	accounts     *fakeAccountRepo
	ledger       *fakeLedgerRepo
	competitions *fakeCompetitionRepo
	regs         *fakeRegistrationRepo
	tournaments  *fakeTournamentRepo
	teams        *fakeTeamRepo
	rooms        *fakeRoomRepo
	notifier     *recordingNotifier
}

func newEnv() *env {
	s := &store{db: newMemDB()}
	return &env{
		store:        s,
		tx:           &fakeTxManager{s: s},
		users:        &fakeUserRepo{s: s},
		accounts:     &fakeAccountRepo{s: s},
		ledger:       &fakeLedgerRepo{s: s},
		competitions: &fakeCompetitionRepo{s: s},
		regs:         &fakeRegistrationRepo{s: s},
		tournaments:  &fakeTournamentRepo{s: s},
		teams:        &fakeTeamRepo{s: s},
		rooms:        &fakeRoomRepo{s: s},
		notifier:     &recordingNotifier{},
	}
}

func (e *env) addAccount(userID int, spendable, withdrawable int64) {
	e.store.db.accounts[userID] = &models.Account{
		UserID:              userID,
		SpendableBalance:    spendable,
		WithdrawableBalance: withdrawable,
	}
}
