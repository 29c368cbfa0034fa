package files

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	metaDirName        = ".meta"
	metaHideName       = "hide"
	metaProtectedName  = "protected"
	metaIconName       = "icon"
	iconsBackupDirName = ".icons_backup"
	publicFilesDirName = "public_files"
	uploadTmpDirName   = ".upload-tmp"
	userFilesDirName   = "files"
	userTrashDirName   = "trash"
)

// Sanitize는 클라이언트가 보낸 경로를 사용자 루트 기준의 안전한 상대 경로로 만듭니다.
// 결과는 항상 "/"로 시작하고, "..", "." 세그먼트, "\", 연속 "/"를 포함하지 않으며 루트가 아니면 "/"로 끝나지 않습니다.
// 같은 노드는 항상 같은 문자열이 되므로 공유 키로 그대로 쓸 수 있습니다.
func Sanitize(raw string) string {
	p := raw
	if decoded, err := url.PathUnescape(raw); err == nil {
		p = decoded
	}
	p = strings.ReplaceAll(p, "\x00", "")
	p = strings.ReplaceAll(p, `\`, "/")

	// 한 단계가 다른 단계의 패턴을 다시 만들 수 있으므로 고정점까지 반복
	for {
		prev := p
		p = strings.ReplaceAll(p, "../", "")
		p = strings.ReplaceAll(p, "/..", "")
		for strings.Contains(p, "//") {
			p = strings.ReplaceAll(p, "//", "/")
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		for strings.Contains(p, "/./") {
			p = strings.ReplaceAll(p, "/./", "/")
		}
		if strings.HasSuffix(p, "/.") {
			p = p[:len(p)-1]
		}
		if len(p) > 1 && strings.HasSuffix(p, "/") {
			p = p[:len(p)-1]
		}
		if p == prev {
			return p
		}
	}
}

// IsInside는 sanitize된 child가 parent와 같거나 그 하위인지 검사합니다
func IsInside(parent, child string) bool {
	if parent == "/" {
		return true
	}
	return child == parent || strings.HasPrefix(child, strings.TrimSuffix(parent, "/")+"/")
}

func hasReservedSegment(cleanPath string) bool {
	for _, segment := range strings.Split(cleanPath, "/") {
		if segment == metaDirName || segment == uploadTmpDirName {
			return true
		}
	}
	return false
}

// isIconPath는 폴더 아이콘 파일(<dir>/.meta/icon) 경로인지 확인합니다
func isIconPath(cleanPath string) bool {
	return path.Base(cleanPath) == metaIconName && path.Base(path.Dir(cleanPath)) == metaDirName &&
		!hasReservedSegment(path.Dir(path.Dir(cleanPath)))
}

// Layout은 디스크 위의 사용자별 디렉토리 배치를 계산합니다.
// <data_root>/<id>/files 가 사용자 루트, <data_root>/<id>/trash 가 휴지통입니다.
type Layout struct {
	DataRoot string
}

func (l Layout) UserDir(userID int64) string {
	return filepath.Join(l.DataRoot, strconv.FormatInt(userID, 10))
}

func (l Layout) UserRoot(userID int64) string {
	return filepath.Join(l.UserDir(userID), userFilesDirName)
}

func (l Layout) TrashRoot(userID int64) string {
	return filepath.Join(l.UserDir(userID), userTrashDirName)
}

func (l Layout) uploadTmpDir(userID int64) string {
	return filepath.Join(l.UserDir(userID), uploadTmpDirName)
}

// Resolve는 sanitize된 경로를 사용자 루트 아래 절대 경로로 바꾸고 트래버셜 방지 검증을 수행합니다.
func (l Layout) Resolve(userID int64, cleanPath string) (string, error) {
	root := l.UserRoot(userID)
	abs := filepath.Join(root, filepath.FromSlash(cleanPath))
	if !isPathWithin(abs, root) {
		return "", fmt.Errorf("path traversal detected")
	}
	return abs, nil
}

func isPathWithin(abs, root string) bool {
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel != ".." && !strings.HasPrefix(rel, "../")
}
