package services

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cultivatehq/backend/internal/models"
	"github.com/cultivatehq/backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Progress is the pure state-machine core of onboarding: a current screen in
// [1, total] plus the set of completed screens. Transitions return a new
// value and never touch storage, so they are testable without a database.
type Progress struct {
	Current   int
	Completed []int
}

func clampScreen(screen, total int) int {
	if screen < 1 {
		return 1
	}
	if screen > total {
		return total
	}
	return screen
}

func (p Progress) has(screen int) bool {
	for _, s := range p.Completed {
		if s == screen {
			return true
		}
	}
	return false
}

// Complete idempotently marks a screen finished. Out-of-range screens are
// ignored: a stale client, not a fault.
func (p Progress) Complete(screen, total int) Progress {
	if screen < 1 || screen > total || p.has(screen) {
		return p
	}
	completed := make([]int, len(p.Completed), len(p.Completed)+1)
	copy(completed, p.Completed)
	completed = append(completed, screen)
	sort.Ints(completed)
	return Progress{Current: p.Current, Completed: completed}
}

// Next marks the current screen complete and advances, clamped at the
// terminal screen.
func (p Progress) Next(total int) Progress {
	next := p.Complete(p.Current, total)
	next.Current = clampScreen(p.Current+1, total)
	return next
}

// Previous steps back without un-completing the screen being left.
func (p Progress) Previous(total int) Progress {
	return Progress{Current: clampScreen(p.Current-1, total), Completed: p.Completed}
}

// NavigateTo jumps directly to a screen. No completion side effect, and no
// requirement that intermediate screens were completed.
func (p Progress) NavigateTo(target, total int) Progress {
	return Progress{Current: clampScreen(target, total), Completed: p.Completed}
}

// TerminalComplete reports whether the last screen has been finished.
func (p Progress) TerminalComplete(total int) bool {
	return p.has(total)
}

// OnboardingService persists onboarding state, one row per user, created
// lazily. Writes for the same user are serialized through a per-user lock so
// two rapid navigation calls cannot interleave their read-modify-write.
type OnboardingService struct {
	DB           *gorm.DB
	TotalScreens int
	Notifier     *Notifier

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewOnboardingService(db *gorm.DB, totalScreens int, notifier *Notifier) *OnboardingService {
	if totalScreens < 1 {
		totalScreens = 1
	}
	return &OnboardingService{
		DB:           db,
		TotalScreens: totalScreens,
		Notifier:     notifier,
		locks:        map[uuid.UUID]*sync.Mutex{},
	}
}

func (s *OnboardingService) userLock(userID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[userID] = lock
	}
	return lock
}

// Get loads the user's onboarding row, creating it with defaults on first
// visit.
func (s *OnboardingService) Get(userID uuid.UUID) (*models.OnboardingState, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.getLocked(userID)
}

func (s *OnboardingService) getLocked(userID uuid.UUID) (*models.OnboardingState, error) {
	return s.getLockedDB(s.DB, userID)
}

func (s *OnboardingService) getLockedDB(db *gorm.DB, userID uuid.UUID) (*models.OnboardingState, error) {
	var state models.OnboardingState
	err := db.First(&state, "user_id = ?", userID).Error
	if err == nil {
		return &state, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	state = models.OnboardingState{
		UserID:           userID,
		CurrentScreen:    1,
		CompletedScreens: []int{},
		StartedAt:        now,
		LastActivityAt:   now,
	}
	if err := db.Create(&state).Error; err != nil {
		return nil, err
	}

	logger.InfoWithUser(userID.String(), "onboarding_started", map[string]interface{}{
		"total_screens": s.TotalScreens,
	})
	return &state, nil
}

func (s *OnboardingService) apply(userID uuid.UUID, transition func(Progress) Progress) (*models.OnboardingState, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.getLocked(userID)
	if err != nil {
		return nil, err
	}

	progress := transition(Progress{Current: state.CurrentScreen, Completed: state.CompletedScreens})

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"current_screen":    progress.Current,
		"completed_screens": progress.Completed,
		"last_activity_at":  now,
	}

	justCompleted := progress.TerminalComplete(s.TotalScreens) && !state.IsComplete
	if justCompleted {
		updates["is_complete"] = true
		updates["completed_at"] = now
	}

	if err := s.DB.Model(state).Updates(updates).Error; err != nil {
		return nil, err
	}

	state.CurrentScreen = progress.Current
	state.CompletedScreens = progress.Completed
	state.LastActivityAt = now
	if justCompleted {
		state.IsComplete = true
		state.CompletedAt = &now
	}

	if justCompleted {
		logger.InfoWithUser(userID.String(), "onboarding_completed", map[string]interface{}{
			"screens_completed": len(progress.Completed),
		})
	}

	s.Notifier.Publish(userID, ResourceOnboarding)
	return state, nil
}

func (s *OnboardingService) NextScreen(userID uuid.UUID) (*models.OnboardingState, error) {
	return s.apply(userID, func(p Progress) Progress { return p.Next(s.TotalScreens) })
}

func (s *OnboardingService) PreviousScreen(userID uuid.UUID) (*models.OnboardingState, error) {
	return s.apply(userID, func(p Progress) Progress { return p.Previous(s.TotalScreens) })
}

func (s *OnboardingService) NavigateToScreen(userID uuid.UUID, target int) (*models.OnboardingState, error) {
	return s.apply(userID, func(p Progress) Progress { return p.NavigateTo(target, s.TotalScreens) })
}

func (s *OnboardingService) CompleteScreen(userID uuid.UUID, screen int) (*models.OnboardingState, error) {
	return s.apply(userID, func(p Progress) Progress { return p.Complete(screen, s.TotalScreens) })
}

type VoiceMemoKind string

const (
	VoiceMemoChallenge VoiceMemoKind = "challenge"
	VoiceMemoGoal      VoiceMemoKind = "goal"
	VoiceMemoProfile   VoiceMemoKind = "profile_enhancement"
)

var ErrUnknownMemoKind = errors.New("unknown voice memo kind")

// AttachVoiceMemo stores the artifact reference for one of the captured
// onboarding memos.
func (s *OnboardingService) AttachVoiceMemo(userID uuid.UUID, kind VoiceMemoKind, artifactID uuid.UUID) (*models.OnboardingState, error) {
	var column string
	switch kind {
	case VoiceMemoChallenge:
		column = "challenge_voice_memo_id"
	case VoiceMemoGoal:
		column = "goal_voice_memo_id"
	case VoiceMemoProfile:
		column = "profile_voice_memo_id"
	default:
		return nil, ErrUnknownMemoKind
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.getLocked(userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.DB.Model(state).Updates(map[string]interface{}{
		column:             artifactID,
		"last_activity_at": now,
	}).Error; err != nil {
		return nil, err
	}

	s.Notifier.Publish(userID, ResourceOnboarding)
	return s.getLocked(userID)
}

// RecordGoalContactImports stores the imported goal-contact URLs and their
// per-URL outcomes.
func (s *OnboardingService) RecordGoalContactImports(userID uuid.UUID, imports []models.GoalContactImport) (*models.OnboardingState, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.getLocked(userID)
	if err != nil {
		return nil, err
	}

	if err := s.DB.Model(state).Updates(map[string]interface{}{
		"imported_goal_contacts": imports,
		"last_activity_at":       time.Now().UTC(),
	}).Error; err != nil {
		return nil, err
	}

	s.Notifier.Publish(userID, ResourceOnboarding)
	return s.getLocked(userID)
}

// SetIntegrationConnected flips the connection flag matching an OAuth
// provider once its tokens are stored.
func (s *OnboardingService) SetIntegrationConnected(userID uuid.UUID, provider models.IntegrationProvider) error {
	var column string
	switch provider {
	case models.IntegrationProviderGmail:
		column = "gmail_connected"
	case models.IntegrationProviderCalendar:
		column = "calendar_connected"
	case models.IntegrationProviderLinkedIn:
		column = "linked_in_connected"
	default:
		return nil
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.getLocked(userID)
	if err != nil {
		return err
	}

	if err := s.DB.Model(state).Updates(map[string]interface{}{
		column:             true,
		"last_activity_at": time.Now().UTC(),
	}).Error; err != nil {
		return err
	}

	s.Notifier.Publish(userID, ResourceOnboarding)
	return nil
}

// Reset clears progress and captured artifact references. Admin-only; the
// caller is responsible for auditing it. The row itself survives.
func (s *OnboardingService) Reset(userID uuid.UUID) (*models.OnboardingState, int, error) {
	return s.ResetTx(s.DB, userID)
}

// ResetTx is Reset running on the caller's transaction, so the wipe rolls
// back together with its audit entry.
func (s *OnboardingService) ResetTx(db *gorm.DB, userID uuid.UUID) (*models.OnboardingState, int, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.getLockedDB(db, userID)
	if err != nil {
		return nil, 0, err
	}

	cleared := len(state.CompletedScreens)
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"current_screen":          1,
		"completed_screens":       []int{},
		"is_complete":             false,
		"completed_at":            nil,
		"challenge_voice_memo_id": nil,
		"goal_voice_memo_id":      nil,
		"profile_voice_memo_id":   nil,
		"imported_goal_contacts":  nil,
		"last_activity_at":        now,
	}
	if err := db.Model(state).Updates(updates).Error; err != nil {
		return nil, 0, err
	}

	s.Notifier.Publish(userID, ResourceOnboarding)

	fresh, err := s.getLockedDB(db, userID)
	if err != nil {
		return nil, 0, err
	}
	return fresh, cleared, nil
}
