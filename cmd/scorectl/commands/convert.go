package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/rhuss/scoregate/pkg/api"
	"github.com/rhuss/scoregate/pkg/config"
	"github.com/rhuss/scoregate/pkg/engine"
	"github.com/rhuss/scoregate/pkg/omr"
)

// ExitDegraded is the exit code when the engine ran but produced no score.
const ExitDegraded = 2

// ConvertAction runs the conversion pipeline on a local file.
func ConvertAction(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return cli.Exit("convert: missing input file", 1)
	}

	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	engineCfg := cfg.OMR()
	if cmd.IsSet("engine") {
		engineCfg.Command = cmd.String("engine")
	}
	if cmd.IsSet("engine-timeout") {
		engineCfg.Timeout = cmd.Duration("engine-timeout")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	eng, err := engine.New(omr.NewInvoker(engineCfg), nil, engine.Config{
		MaxConcurrent:  1,
		WorkDir:        cfg.Engine.WorkDir,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})
	if err != nil {
		return err
	}

	slog.Debug("converting", "file", path, "engine", engineCfg.Command, "timeout", engineCfg.Timeout)

	res, err := eng.Convert(ctx, &api.ConversionRequest{
		Filename: filepath.Base(path),
		Size:     info.Size(),
		Body:     f,
	})
	if err != nil {
		return err
	}
	if res.Degraded() {
		return cli.Exit("conversion failed: "+res.Note, ExitDegraded)
	}

	out := cmd.String("out")
	if out == "" {
		_, err := fmt.Fprintln(cmd.Root().Writer, res.MusicXML)
		return err
	}
	if err := os.WriteFile(out, []byte(res.MusicXML), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().ErrWriter, "wrote %s (%d bytes)\n", out, len(res.MusicXML))
	return nil
}
