package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	sharestore "github.com/marmos91/sharegate/pkg/store/share"
)

// linkView is the client-facing shape of a share link. PIN hash material
// never leaves the store layer.
type linkView struct {
	Token          string     `json:"token"`
	URL            string     `json:"url"`
	FilePath       string     `json:"file_path"`
	FileName       string     `json:"file_name"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	MaxDownloads   int        `json:"max_downloads"`
	DownloadCount  int        `json:"download_count"`
	PINProtected   bool       `json:"pin_protected"`
	Creator        string     `json:"creator,omitempty"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	Revoked        bool       `json:"revoked"`
}

func (s *Server) linkView(l *sharestore.Link) linkView {
	return linkView{
		Token:          l.Token,
		URL:            s.shareURL(l.Token),
		FilePath:       l.FilePath,
		FileName:       l.FileName,
		CreatedAt:      l.CreatedAt,
		ExpiresAt:      l.ExpiresAt,
		MaxDownloads:   l.MaxDownloads,
		DownloadCount:  l.DownloadCount,
		PINProtected:   l.HasPIN(),
		Creator:        l.Creator,
		LastAccessedAt: l.LastAccessedAt,
		Revoked:        l.Revoked,
	}
}

// shareURL renders the public download URL for a token.
func (s *Server) shareURL(token string) string {
	base := strings.TrimRight(s.cfg.Server.ExternalURL, "/")
	return base + "/s/" + token
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
