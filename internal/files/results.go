package files

type ListFilesResult struct {
	IsFile    bool        `json:"is_file"`
	CleanPath string      `json:"clean_path"`
	Files     []ListEntry `json:"files"`
}

type UploadResult struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Public   bool   `json:"public"`
	Hash     string `json:"hash,omitempty"`
	URL      string `json:"url,omitempty"`
	ShortURL string `json:"short_url,omitempty"`
}

// PathResult는 경로 하나를 결과로 돌려주는 액션(rename, move, copy, create, restore 등)의 결과입니다
type PathResult struct {
	Path string `json:"path"`
}

type DeleteResult struct {
	Path    string `json:"path"`
	Trashed bool   `json:"trashed"`
	TrashID string `json:"trash_id,omitempty"`
	Freed   int64  `json:"freed"`
}

type TrashListResult struct {
	Items     []TrashEntry `json:"items"`
	TotalSize int64        `json:"total_size"`
}

type EmptyTrashResult struct {
	Freed int64 `json:"freed"`
}

type ShareStatusResult struct {
	Path     string `json:"path"`
	Shared   bool   `json:"shared"`
	CanShare bool   `json:"can_share"`
	Hash     string `json:"hash,omitempty"`
	URL      string `json:"url,omitempty"`
	ShortURL string `json:"short_url,omitempty"`
}

type PublicFile struct {
	Hash     string `json:"hash"`
	Path     string `json:"path"`
	URL      string `json:"url"`
	ShortURL string `json:"short_url,omitempty"`
	Exists   bool   `json:"exists"`
}

type ListPublicResult struct {
	Files []PublicFile `json:"files"`
}

type UsageResult struct {
	Usage     int64  `json:"usage"`
	Quota     int64  `json:"quota"`
	Unlimited bool   `json:"unlimited"`
	DiskFree  uint64 `json:"disk_free"`
}

type IconResult struct {
	Path  string `json:"path"`
	Reset bool   `json:"reset"`
}

type HiddenResult struct {
	Path   string `json:"path"`
	Hidden bool   `json:"hidden"`
}
