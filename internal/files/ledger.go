package files

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrQuotaNotFound는 사용자의 사용량 행이 아직 없을 때 반환됩니다
var ErrQuotaNotFound = errors.New("quota record not found")

type QuotaStorer interface {
	GetUsage(ctx context.Context, userID int64) (int64, error)
	SetUsage(ctx context.Context, userID int64, usage int64) error
	// AddUsage는 usage = usage + delta 를 한 문장으로 적용합니다
	AddUsage(ctx context.Context, userID int64, delta int64) error
	DeleteUsage(ctx context.Context, userID int64) error
}

// CheckQuota는 incoming 바이트를 쓰려 할 때 쿼터 안에 들어오는지 계산합니다.
// existing은 덮어써질 경로의 현재 크기(없으면 0)입니다. quota 0은 무제한입니다.
func CheckQuota(incoming, existing, current, quota int64) (bool, int64) {
	delta := incoming - existing
	if quota == 0 {
		return true, delta
	}
	return quota >= current+delta, delta
}

// Ledger는 사용자별 바이트 사용량을 저장소에 유지합니다.
// 행이 없을 때만 트리를 전부 측정하고, 그 외에는 증분으로 갱신합니다.
type Ledger struct {
	store  QuotaStorer
	layout Layout
	trash  *Trash

	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func NewLedger(store QuotaStorer, layout Layout, trash *Trash) *Ledger {
	return &Ledger{
		store:  store,
		layout: layout,
		trash:  trash,
		locks:  make(map[int64]*userLock),
	}
}

// lock은 한 사용자의 확인 → 변경 → 반영 구간을 직렬화합니다. 반환된 함수로 해제합니다.
func (l *Ledger) lock(userID int64) func() {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

// Usage는 저장된 사용량을 반환합니다. 행이 없으면 측정 후 저장합니다.
func (l *Ledger) Usage(ctx context.Context, userID int64) (int64, error) {
	usage, err := l.store.GetUsage(ctx, userID)
	if err == nil {
		return usage, nil
	}
	if !errors.Is(err, ErrQuotaNotFound) {
		return 0, fmt.Errorf("failed to load usage: %w", err)
	}
	return l.recompute(ctx, userID)
}

// Recompute는 사용자 트리와 휴지통을 다시 측정해 저장된 값을 덮어씁니다
func (l *Ledger) Recompute(ctx context.Context, userID int64) (int64, error) {
	unlock := l.lock(userID)
	defer unlock()
	return l.recompute(ctx, userID)
}

func (l *Ledger) recompute(ctx context.Context, userID int64) (int64, error) {
	usage, err := l.measure(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := l.store.SetUsage(ctx, userID, usage); err != nil {
		return 0, fmt.Errorf("failed to save usage: %w", err)
	}
	return usage, nil
}

func (l *Ledger) measure(ctx context.Context, userID int64) (int64, error) {
	var total int64
	root := l.layout.UserRoot(userID)
	if exists(root) {
		size, err := SizeOf(ctx, root)
		if err != nil {
			return 0, err
		}
		total += size
	}
	if l.trash != nil {
		size, err := l.trash.measure(ctx, userID)
		if err != nil {
			return 0, err
		}
		total += size
	}
	return total, nil
}

// apply는 파일 시스템 변경이 성공한 뒤에 호출됩니다. 반영에 실패하면 행을 지워
// 다음 호출에서 다시 측정되도록 합니다.
func (l *Ledger) apply(ctx context.Context, userID int64, delta int64) {
	if delta == 0 {
		return
	}
	err := l.store.AddUsage(ctx, userID, delta)
	if err == nil {
		return
	}
	log.Warn().Err(err).Int64("user_id", userID).Int64("delta", delta).Msg("[Files] failed to apply usage delta")
	if err := l.store.DeleteUsage(ctx, userID); err != nil {
		log.Warn().Err(err).Int64("user_id", userID).Msg("[Files] failed to invalidate usage record")
	}
}
