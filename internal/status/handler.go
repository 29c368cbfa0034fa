package status

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"taeu.kr/filebox/internal/platform/web"
)

type ComponentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

type DiskStatus struct {
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"usedPercent"`
}

type StatusResponse struct {
	Components map[string]ComponentStatus `json:"components"`
	Disk       *DiskStatus                `json:"disk,omitempty"`
	Hosts      []string                   `json:"hosts"`
}

type Handler struct {
	db                  *sql.DB
	dataRoot            string
	port                string
	shortlinkConfigured bool
}

func NewHandler(db *sql.DB, dataRoot string, port string, shortlinkConfigured bool) *Handler {
	return &Handler{
		db:                  db,
		dataRoot:            dataRoot,
		port:                port,
		shortlinkConfigured: shortlinkConfigured,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/status", web.Handler(h.handleStatus))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) *web.Error {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	components := map[string]ComponentStatus{
		"database":  h.checkDatabase(ctx),
		"storage":   h.checkStorage(),
		"shortlink": h.checkShortlink(),
	}

	web.WriteJSON(w, http.StatusOK, StatusResponse{
		Components: components,
		Disk:       h.diskStatus(ctx),
		Hosts:      h.getAccessibleHosts(),
	})
	return nil
}

func (h *Handler) checkDatabase(ctx context.Context) ComponentStatus {
	if err := h.db.PingContext(ctx); err != nil {
		return ComponentStatus{Status: "unhealthy", Message: "DB 연결 실패"}
	}
	return ComponentStatus{Status: "healthy", Message: "정상"}
}

// checkStorage는 데이터 루트에 실제로 쓸 수 있는지 확인합니다
func (h *Handler) checkStorage() ComponentStatus {
	info, err := os.Stat(h.dataRoot)
	if err != nil || !info.IsDir() {
		return ComponentStatus{Status: "unhealthy", Message: "데이터 디렉토리 없음", Path: h.dataRoot}
	}

	tmp, err := os.CreateTemp(h.dataRoot, ".status-*")
	if err != nil {
		return ComponentStatus{Status: "unhealthy", Message: "데이터 디렉토리 쓰기 불가", Path: h.dataRoot}
	}
	name := tmp.Name()
	_ = tmp.Close()
	_ = os.Remove(name)

	return ComponentStatus{Status: "healthy", Message: "정상", Path: h.dataRoot}
}

func (h *Handler) checkShortlink() ComponentStatus {
	if !h.shortlinkConfigured {
		return ComponentStatus{Status: "disabled", Message: "미설정"}
	}
	return ComponentStatus{Status: "healthy", Message: "설정됨"}
}

func (h *Handler) diskStatus(ctx context.Context) *DiskStatus {
	usage, err := disk.UsageWithContext(ctx, h.dataRoot)
	if err != nil {
		return nil
	}
	return &DiskStatus{
		Total:       usage.Total,
		Free:        usage.Free,
		Used:        usage.Used,
		UsedPercent: usage.UsedPercent,
	}
}

func (h *Handler) getAccessibleHosts() []string {
	hosts := []string{fmt.Sprintf("localhost:%s", h.port)}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return hosts
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() || ipNet.IP.To4() == nil {
			continue
		}
		hosts = append(hosts, fmt.Sprintf("%s:%s", ipNet.IP.String(), h.port))
	}

	return hosts
}
