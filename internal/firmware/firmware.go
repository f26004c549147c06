// Package firmware provides firmware management functionality.
package firmware

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmcpi/uefivars/internal/firmware/manager"
	"github.com/bmcpi/uefivars/internal/firmware/varstore"
	"github.com/go-logr/logr"
	"github.com/spf13/afero"
	"go.uber.org/multierr"
)

var ErrTemplateNotFound = errors.New("template UEFI variables file not found")

// InstallTemplate copies the pristine variables template to dest unless dest
// already exists. It reports whether a copy was made.
func InstallTemplate(fs afero.Fs, template, dest string) (bool, error) {
	exists, err := afero.Exists(fs, dest)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", dest, err)
	}
	if exists {
		return false, nil
	}
	if err := copyTemplate(fs, template, dest); err != nil {
		return false, err
	}
	return true, nil
}

// copyTemplate installs template at dest through a temporary file in the
// same directory, so dest is either the old file or a complete copy.
func copyTemplate(fs afero.Fs, template, dest string) (err error) {
	data, err := afero.ReadFile(fs, template)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrTemplateNotFound, template)
	}
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	tmp, err := afero.TempFile(fs, filepath.Dir(dest), "."+filepath.Base(dest))
	if err != nil {
		return fmt.Errorf("failed to install template: %w", err)
	}
	defer func() {
		if err != nil {
			err = multierr.Append(err, fs.Remove(tmp.Name()))
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return multierr.Append(fmt.Errorf("failed to install template: %w", err), tmp.Close())
	}
	if err := tmp.Sync(); err != nil {
		return multierr.Append(fmt.Errorf("failed to install template: %w", err), tmp.Close())
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to install template: %w", err)
	}
	if err := fs.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to install template: %w", err)
	}
	if err := fs.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to install template: %w", err)
	}
	return nil
}

// Load installs the template if needed and loads the variables file. A file
// whose contents cannot be decoded is replaced by a fresh copy of the
// template; I/O errors are returned without touching it. The variable store
// itself is always read from the operating system, so fs must be backed by
// it.
func Load(log logr.Logger, fs afero.Fs, nvramPath, templatePath string) (*manager.EDK2Manager, error) {
	installed, err := InstallTemplate(fs, templatePath, nvramPath)
	if err != nil {
		return nil, err
	}
	if installed {
		log.Info("Copied UEFI template variables file", "template", templatePath, "path", nvramPath)
	}

	mgr, err := manager.NewEDK2Manager(nvramPath, log)
	if err == nil {
		return mgr, nil
	}
	if installed || templatePath == "" || !errors.Is(err, varstore.ErrInvalidVarStore) {
		return nil, err
	}

	log.Error(err, "UEFI variables file is unusable, reinstalling template", "path", nvramPath)
	if err := copyTemplate(fs, templatePath, nvramPath); err != nil {
		return nil, err
	}
	return manager.NewEDK2Manager(nvramPath, log)
}
