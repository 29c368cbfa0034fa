package files

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

// Config는 Service 구성 요소입니다
type Config struct {
	DataRoot   string
	IconsDir   string
	Quotas     QuotaStorer
	Shares     ShareStorer
	Shortener  Shortener
	Settings   SettingsFunc
	Registerer prometheus.Registerer
}

// Service는 사용자별 파일 액션을 처리합니다. 호출 간 상태는 디스크와 저장소에만 있습니다.
type Service struct {
	layout   Layout
	iconsDir string
	settings SettingsFunc
	ledger   *Ledger
	trash    *Trash
	shares   *ShareRegistry
	metrics  *Metrics
	actions  map[string]action
}

type action struct {
	required []string
	caps     []Capability
	run      func(ctx context.Context, s *session, p Params, upload *Upload) (any, error)
}

// session은 한 호출 동안의 사용자 상태입니다
type session struct {
	rc           *RequestContext
	userID       int64
	usage        int64
	quota        int64
	trashEnabled bool
}

func NewService(cfg Config) (*Service, error) {
	if cfg.DataRoot == "" {
		return nil, fmt.Errorf("data root is required")
	}
	if cfg.Quotas == nil || cfg.Shares == nil {
		return nil, fmt.Errorf("quota and share stores are required")
	}
	settings := cfg.Settings
	if settings == nil {
		settings = func() Settings { return Settings{} }
	}

	dataRoot, err := filepath.Abs(cfg.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("invalid data root: %w", err)
	}
	if err := os.MkdirAll(dataRoot, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create data root: %w", err)
	}

	layout := Layout{DataRoot: dataRoot}
	trash := NewTrash(layout)
	s := &Service{
		layout:   layout,
		iconsDir: cfg.IconsDir,
		settings: settings,
		ledger:   NewLedger(cfg.Quotas, layout, trash),
		trash:    trash,
		shares:   NewShareRegistry(cfg.Shares, cfg.Shortener, settings),
		metrics:  NewMetrics(cfg.Registerer),
	}
	s.actions = s.actionTable()
	return s, nil
}

func (s *Service) Layout() Layout {
	return s.layout
}

func (s *Service) Ledger() *Ledger {
	return s.ledger
}

func (s *Service) Shares() *ShareRegistry {
	return s.shares
}

// Execute는 이름이 action인 액션을 실행합니다. 모르는 액션이면 ErrNotHandled를 반환합니다.
// 필수 파라미터와 권한 검사는 파일 시스템에 접근하기 전에 수행됩니다.
func (s *Service) Execute(ctx context.Context, rc *RequestContext, name string, params Params, upload *Upload) (result any, err error) {
	act, ok := s.actions[name]
	if !ok {
		return nil, ErrNotHandled
	}
	if rc == nil || rc.CallerID <= 0 {
		return nil, errPermission()
	}
	if params == nil {
		params = Params{}
	}

	started := time.Now()
	defer func() {
		s.metrics.observe(name, started, err)
	}()

	for _, key := range act.required {
		if _, ok := params[key]; !ok {
			return nil, errMissingParameter(key)
		}
	}
	for _, c := range act.caps {
		if !rc.Has(c) {
			return nil, errPermission()
		}
	}

	unlock := s.ledger.lock(rc.CallerID)
	defer unlock()

	sess, err := s.begin(ctx, rc)
	if err != nil {
		return nil, err
	}

	result, err = act.run(ctx, sess, params, upload)
	if err != nil {
		return nil, asError(err)
	}
	return result, nil
}

// begin은 모든 호출의 앞부분에서 사용자 루트, 휴지통, 사용량을 준비합니다
func (s *Service) begin(ctx context.Context, rc *RequestContext) (*session, error) {
	userID := rc.CallerID

	created, err := s.ensureRoot(userID, rc.Lang)
	if err != nil {
		return nil, err
	}
	if err := s.reconcileTrash(ctx, userID, rc.Has(CapTrash)); err != nil {
		return nil, err
	}

	var usage int64
	if created {
		usage, err = s.ledger.recompute(ctx, userID)
	} else {
		usage, err = s.ledger.Usage(ctx, userID)
	}
	if err != nil {
		return nil, errIO(err)
	}

	quota := s.settings().Quota
	if rc.Has(CapUnlimited) {
		quota = 0
	}

	return &session{
		rc:           rc,
		userID:       userID,
		usage:        usage,
		quota:        quota,
		trashEnabled: rc.Has(CapTrash) && rc.Has(CapPrivateFiles),
	}, nil
}

// reserve는 쿼터를 확인하고 적용할 델타를 반환합니다. 실패하면 파일 시스템은 건드리지 않습니다.
func (s *Service) reserve(sess *session, incoming, existing int64) (int64, error) {
	ok, delta := CheckQuota(incoming, existing, sess.usage, sess.quota)
	if !ok {
		return 0, newError(KindQuota, msgQuotaExceeded, nil).
			with("usage", sess.usage).
			with("quota", sess.quota).
			with("required", delta)
	}
	return delta, nil
}

// commit은 변경이 끝난 뒤 사용량을 반영합니다
func (s *Service) commit(ctx context.Context, sess *session, delta int64) {
	if delta == 0 {
		return
	}
	s.ledger.apply(ctx, sess.userID, delta)
	s.metrics.written(delta)
	sess.usage += delta
}

// resolve는 클라이언트 경로를 정리하고 사용자 루트 아래 절대 경로로 바꿉니다.
// .meta 같은 예약 세그먼트를 포함하면 거부합니다.
func (s *Service) resolve(sess *session, raw string) (string, string, error) {
	cleanPath := Sanitize(raw)
	if hasReservedSegment(cleanPath) {
		return "", "", newError(KindPermission, msgReservedPath, nil).with("path", cleanPath)
	}
	abs, err := s.layout.Resolve(sess.userID, cleanPath)
	if err != nil {
		return "", "", errPermission()
	}
	return cleanPath, abs, nil
}

// isProtected는 루트이거나 .meta/protected 표시가 있는 디렉토리인지 확인합니다
func isProtected(cleanPath, abs string) bool {
	return cleanPath == "/" || exists(filepath.Join(abs, metaDirName, metaProtectedName))
}

func validName(name string) bool {
	if name == "" || name == "." || name == ".." || name == metaDirName || name == uploadTmpDirName {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// DeleteUserData는 사용자의 공유, 사용량 행, 파일 트리와 휴지통을 모두 제거합니다.
// 각 단계는 앞 단계가 실패해도 수행됩니다.
func (s *Service) DeleteUserData(ctx context.Context, userID int64) error {
	unlock := s.ledger.lock(userID)
	defer unlock()

	var errs []error
	if err := s.shares.DeleteOwner(ctx, userID); err != nil {
		errs = append(errs, fmt.Errorf("failed to delete shares: %w", err))
	}
	if err := s.ledger.store.DeleteUsage(ctx, userID); err != nil {
		errs = append(errs, fmt.Errorf("failed to delete usage: %w", err))
	}
	if err := os.RemoveAll(s.layout.UserDir(userID)); err != nil {
		errs = append(errs, fmt.Errorf("failed to delete user tree: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	log.Info().Int64("user_id", userID).Msg("[Files] user data deleted")
	return nil
}

// ResolvePrivateFile은 호출자 자신의 일반 파일 경로를 반환합니다. 제공할 수 없으면 ErrNotHandled입니다.
func (s *Service) ResolvePrivateFile(rc *RequestContext, raw string) (string, error) {
	if rc == nil || !rc.Has(CapPrivateFiles) {
		return "", ErrNotHandled
	}
	cleanPath := Sanitize(raw)
	if hasReservedSegment(cleanPath) && !isIconPath(cleanPath) {
		return "", ErrNotHandled
	}
	abs, err := s.layout.Resolve(rc.CallerID, cleanPath)
	if err != nil || !isRegular(abs) {
		return "", ErrNotHandled
	}
	return abs, nil
}

// OwnerCapabilities는 공유 소유자의 현재 권한을 조회합니다
type OwnerCapabilities func(ctx context.Context, owner int64) ([]string, error)

// ResolvePublicFile은 공개 해시로 공유된 파일 경로와 파일 이름을 반환합니다.
// 소유자가 더 이상 공개 권한이 없으면 ErrNotHandled입니다.
func (s *Service) ResolvePublicFile(ctx context.Context, hash string, ownerCaps OwnerCapabilities) (string, string, error) {
	if len(hash) != 64 {
		return "", "", ErrNotHandled
	}
	record, err := s.shares.Lookup(ctx, hash)
	if err != nil {
		if !errors.Is(err, ErrShareNotFound) {
			log.Warn().Err(err).Str("hash", hash).Msg("[Share] lookup failed")
		}
		return "", "", ErrNotHandled
	}

	caps, err := ownerCaps(ctx, record.Owner)
	if err != nil {
		return "", "", ErrNotHandled
	}
	if !NewRequestContext(record.Owner, caps, language.Und).Has(CapPublicFiles) {
		return "", "", ErrNotHandled
	}

	abs, err := s.layout.Resolve(record.Owner, Sanitize(record.Path))
	if err != nil || !isRegular(abs) {
		return "", "", ErrNotHandled
	}
	return abs, filepath.Base(abs), nil
}
