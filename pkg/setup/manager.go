package setup

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kinetic-sim/kinetic-go/pkg/persistence"
	"github.com/kinetic-sim/kinetic-go/pkg/security"
	"github.com/kinetic-sim/kinetic-go/pkg/wire"
)

const (
	// FileName is the setup record file name in the device home.
	FileName = ".setup"

	// FirmwareFileName is the file name of a downloaded firmware image.
	FirmwareFileName = "firmware"

	// FirmwareDirLayout names firmware directories.
	FirmwareDirLayout = "2006-01-02T15-04-05.000"
)

// CheckPermission gates setup changes. A nil table means security has not
// been configured yet and permits everything; otherwise identity needs the
// SETUP permission.
func CheckPermission(table security.Table, identity int64) error {
	if table == nil {
		return nil
	}
	return security.CheckPermission(table, identity, wire.PermissionSetup)
}

// Manager owns the setup record and the in-memory cluster version.
type Manager struct {
	home   string
	file   *persistence.BackupFile
	logger *slog.Logger
	now    func() time.Time

	clusterVersion atomic.Int64
}

// NewManager creates a manager for the device home directory.
func NewManager(home string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		home:   home,
		file:   persistence.NewBackupFile(filepath.Join(home, FileName)),
		logger: logger,
		now:    time.Now,
	}
}

// Home returns the device home directory.
func (m *Manager) Home() string {
	return m.home
}

// ClusterVersion returns the in-memory cluster version.
func (m *Manager) ClusterVersion() int64 {
	return m.clusterVersion.Load()
}

// SetClusterVersion sets the in-memory cluster version without persisting.
func (m *Manager) SetClusterVersion(v int64) {
	m.clusterVersion.Store(v)
}

// Persist writes setupBytes as the new setup record, keeping the previous
// record as the backup.
func (m *Manager) Persist(setupBytes []byte) error {
	if err := m.file.Replace(setupBytes); err != nil {
		return fmt.Errorf("persist setup: %w", err)
	}
	return nil
}

// PersistFirmware writes a firmware image into a new timestamped directory
// and returns the image path. Existing images are never overwritten: a
// directory name already taken gets a numeric suffix.
func (m *Manager) PersistFirmware(data []byte) (string, error) {
	if err := os.MkdirAll(m.home, 0o755); err != nil {
		return "", fmt.Errorf("persist firmware: %w", err)
	}

	base := filepath.Join(m.home, m.now().Format(FirmwareDirLayout))
	dir := base
	for i := 1; ; i++ {
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			break
		}
		if !errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("persist firmware: %w", err)
		}
		dir = base + "-" + strconv.Itoa(i)
	}

	path := filepath.Join(dir, FirmwareFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("persist firmware: %w", err)
	}

	m.logger.Info("firmware stored", "path", path, "size", humanize.Bytes(uint64(len(data))))
	return path, nil
}

// Load seeds the in-memory cluster version from the setup record. A
// missing record is recovered from its backup. With neither file present,
// or an empty record, the cluster version is unchanged.
func (m *Manager) Load() error {
	data, fromBackup, err := m.file.LoadWithSource()
	if err != nil {
		return fmt.Errorf("load setup: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if fromBackup {
		m.logger.Warn("setup record missing, recovered from backup", "path", m.file.BackupPath())
	}

	var s wire.Setup
	if err := wire.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("load setup: decode %s: %w", m.file.Path(), err)
	}
	if s.NewClusterVersion != nil {
		m.clusterVersion.Store(*s.NewClusterVersion)
		m.logger.Info("cluster version loaded", "clusterVersion", *s.NewClusterVersion)
	}
	return nil
}

// HandleSetup executes a SETUP request: persist the setup body, apply a new
// cluster version if present, store a firmware image if flagged. The
// response status is set to SUCCESS once everything is persisted; errors
// are returned, not converted to a status.
func (m *Manager) HandleSetup(req *wire.Request, resp *wire.Response) error {
	s := req.Body.Setup
	if s == nil {
		s = &wire.Setup{}
	}

	data, err := wire.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode setup: %w", err)
	}
	if err := m.Persist(data); err != nil {
		return err
	}

	if s.NewClusterVersion != nil {
		m.clusterVersion.Store(*s.NewClusterVersion)
		m.logger.Info("cluster version set", "clusterVersion", *s.NewClusterVersion)
	}

	if s.FirmwareDownload && req.Value != nil {
		if _, err := m.PersistFirmware(req.Value); err != nil {
			return err
		}
	}

	resp.Status.Set(wire.StatusSuccess, "")
	return nil
}

// Reset sets the cluster version to 0 and persists a setup record saying
// so. The in-memory version is reset even if persisting fails.
func (m *Manager) Reset() error {
	m.clusterVersion.Store(0)

	zero := int64(0)
	data, err := wire.Marshal(&wire.Setup{NewClusterVersion: &zero})
	if err != nil {
		return fmt.Errorf("encode setup: %w", err)
	}
	return m.Persist(data)
}
