package files

import (
	"io"

	"golang.org/x/text/language"
)

type Capability string

const (
	CapPrivateFiles Capability = "files.private"
	CapPublicFiles  Capability = "files.public"
	CapTrash        Capability = "files.trash"
	CapListPublic   Capability = "files.list_public"
	// CapUnlimited는 쿼터 검사를 우회합니다
	CapUnlimited Capability = "files.unlimited"
)

// RequestContext는 호출자 정보를 모든 서비스 호출에 명시적으로 전달합니다.
type RequestContext struct {
	CallerID     int64
	Capabilities map[Capability]bool
	Lang         language.Tag
}

// NewRequestContext는 문자열 권한 목록으로 RequestContext를 만듭니다
func NewRequestContext(callerID int64, capabilities []string, lang language.Tag) *RequestContext {
	caps := make(map[Capability]bool, len(capabilities))
	for _, c := range capabilities {
		caps[Capability(c)] = true
	}
	return &RequestContext{CallerID: callerID, Capabilities: caps, Lang: lang}
}

func (rc *RequestContext) Has(c Capability) bool {
	return rc != nil && rc.Capabilities[c]
}

// Settings는 files 설정 중 서비스가 매 호출마다 읽는 값입니다
type Settings struct {
	Quota         int64
	UseShortlinks bool
	ImagesPreview bool
	PublicBaseURL string
}

type SettingsFunc func() Settings

// Params는 액션 파라미터입니다
type Params map[string]string

func (p Params) flag(name string) bool {
	return p[name] == "1"
}

// Upload는 업로드된 파일 스트림과 선언된 크기입니다
type Upload struct {
	Name   string
	Size   int64
	Reader io.Reader
}
