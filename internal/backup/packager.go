// Package backup is the backup packager: an out-of-core-scope collaborator
// (spec.md's §1 "Out of scope") wired in so the binary ships as a complete
// system. It zips the script root and the catalog's SQLite file, and
// optionally pushes the archive to a WebDAV endpoint (§3.2's cd2_* keys).
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mholt/archives"

	"github.com/scriptd/scriptd/internal/logger"
)

// Settings mirrors the backup-relevant keys from §3.2.
type Settings struct {
	LocalEnabled   bool
	LocalCron      string
	CD2Enabled     bool
	CD2Cron        string
	CD2WebDAVURL   string
	CD2Username    string
	CD2Password    string
	CD2BackupPath  string
}

// Packager builds and ships backup archives.
type Packager struct {
	ScriptRoot string
	DBPath     string
	BackupRoot string
	http       *resty.Client
}

// New builds a Packager. scriptRoot and dbPath are archived together;
// backupRoot is where local archives are written.
func New(scriptRoot, dbPath, backupRoot string) *Packager {
	return &Packager{
		ScriptRoot: scriptRoot,
		DBPath:     dbPath,
		BackupRoot: backupRoot,
		http:       resty.New(),
	}
}

// RunLocal creates a timestamped zip of the script root and database file
// under BackupRoot, matching the `scheduled_local_backup` job (§4.6).
func (p *Packager) RunLocal(ctx context.Context) (string, error) {
	if err := os.MkdirAll(p.BackupRoot, 0o755); err != nil {
		return "", fmt.Errorf("create backup root: %w", err)
	}
	dest := filepath.Join(p.BackupRoot, fmt.Sprintf("scriptd-%s.zip", time.Now().Format("20060102-150405")))

	sources := map[string]string{
		p.ScriptRoot: "scripts",
	}
	if p.DBPath != "" {
		sources[p.DBPath] = "catalog.db"
	}

	files, err := archives.FilesFromDisk(ctx, nil, sources)
	if err != nil {
		return "", fmt.Errorf("collect backup sources: %w", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}
	defer out.Close()

	if err := (archives.Zip{}).Archive(ctx, out, files); err != nil {
		return "", fmt.Errorf("write zip archive: %w", err)
	}

	logger.Info(ctx, "backup: local archive created", "path", dest)
	return dest, nil
}

// RunCD2 creates a local archive then PUTs it to the configured WebDAV
// endpoint, matching the `scheduled_cd2_backup` job (§4.6).
func (p *Packager) RunCD2(ctx context.Context, s Settings) error {
	archivePath, err := p.RunLocal(ctx)
	if err != nil {
		return err
	}
	if s.CD2WebDAVURL == "" {
		return fmt.Errorf("cd2_webdav_url is not configured")
	}

	dest := s.CD2WebDAVURL
	if s.CD2BackupPath != "" {
		dest = fmt.Sprintf("%s/%s/%s", s.CD2WebDAVURL, s.CD2BackupPath, filepath.Base(archivePath))
	} else {
		dest = fmt.Sprintf("%s/%s", s.CD2WebDAVURL, filepath.Base(archivePath))
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive for upload: %w", err)
	}
	defer f.Close()

	req := p.http.R().SetContext(ctx).SetHeader("Content-Type", "application/zip").SetBody(f)
	if s.CD2Username != "" {
		req = req.SetBasicAuth(s.CD2Username, s.CD2Password)
	}
	resp, err := req.Put(dest)
	if err != nil {
		return fmt.Errorf("put archive to webdav: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webdav put failed: %s", resp.Status())
	}
	logger.Info(ctx, "backup: archive uploaded to clouddrive2", "url", dest)
	return nil
}
