package main

import (
	"log/slog"
	"os"

	"github.com/bmcpi/uefivars/internal/config"
	"github.com/bmcpi/uefivars/internal/firmware"
	"github.com/spf13/afero"
)

// GitRev is the git revision of the build. It is set by the Makefile.
var GitRev = "unknown (use make)"

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Log.WithName("uefivars")
	logger.V(1).Info("uefivars starting", "version", GitRev, "path", cfg.Nvram.Path)

	fs := afero.NewOsFs()

	mgr, err := firmware.Load(logger, fs, cfg.Nvram.Path, cfg.Nvram.Template)
	if err != nil {
		logger.Error(err, "Could not load UEFI variables", "path", cfg.Nvram.Path)
		os.Exit(1)
	}

	if cfg.Nvram.Backup {
		backup, err := firmware.BackupFirmware(fs, cfg.Nvram.Path)
		if err != nil {
			logger.Error(err, "Could not back up UEFI variables", "path", cfg.Nvram.Path)
		} else {
			logger.Info("Backed up UEFI variables", "backup", backup)
		}
	}

	resolver, err := cfg.Resolver()
	if err != nil {
		logger.Error(err, "Invalid boot options")
		os.Exit(1)
	}

	if cfg.Dump {
		out, err := firmware.DumpYAML(mgr, resolver)
		if err != nil {
			logger.Error(err, "Could not dump UEFI variables")
		} else {
			os.Stdout.Write(out)
		}
	}

	firmware.ApplyBootConfig(logger, mgr, resolver, cfg.Boot.Order, cfg.Boot.Next)
}
