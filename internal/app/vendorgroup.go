package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/config"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/grouping"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/monitor"
	"github.com/gve-sw/GVE-DevNet-CyberVision-SecurityIntegration-AutomaticGrouping/internal/support"
)

type vendorGroupOptions struct {
	configPath string
	comment    string
	dryRun     bool
}

func parseVendorGroupFlags(args []string, output io.Writer) (vendorGroupOptions, error) {
	var opts vendorGroupOptions

	fs := flag.NewFlagSet("vendorgroup", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", "", "Optional YAML settings file")
	fs.StringVar(&opts.comment, "comment", grouping.DefaultComment, "Comment stored on every created group")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Print the planned groups without creating them")

	if err := fs.Parse(args); err != nil {
		return vendorGroupOptions{}, err
	}
	if fs.NArg() > 0 {
		return vendorGroupOptions{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

// RunVendorGrouping is the vendorgroup command.
func RunVendorGrouping() error {
	loadDotEnv()

	opts, err := parseVendorGroupFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateMonitor(); err != nil {
		return err
	}
	setLogLevel(cfg.LogLevel)

	client, err := monitor.NewClient(monitor.Options{
		BaseURL: cfg.Monitor.BaseURL,
		Token:   cfg.Monitor.Token,
		HTTP:    support.NewHTTPClient(cfg.HTTPTimeout(), cfg.Monitor.InsecureTLS),
	})
	if err != nil {
		return err
	}

	return runUntilSignal(context.Background(), func(ctx context.Context) error {
		log.Info("Beginning automatic grouping by vendor name")

		if opts.dryRun {
			components, err := client.Components(ctx)
			if err != nil {
				return err
			}
			for _, vg := range grouping.Plan(components) {
				log.Info("Planned vendor group", "vendor", vg.Vendor, "components", len(vg.ComponentIDs))
			}
			return nil
		}

		sum, err := grouping.Run(ctx, client, opts.comment)
		if err != nil {
			return err
		}
		log.Info("Automatic vendor grouping complete", "groups", sum.Groups, "components", sum.Components, "failed", len(sum.Failed))
		if len(sum.Failed) > 0 {
			return fmt.Errorf("vendorgroup: %d vendor groups could not be created: %v", len(sum.Failed), sum.Failed)
		}
		return nil
	})
}
