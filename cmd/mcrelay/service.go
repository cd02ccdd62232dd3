package main

import (
	"fmt"
	"log/slog"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/mcrelay/pkg/app"
)

// program adapts app.Run to the service manager's Start/Stop contract.
type program struct {
	params app.RunParams
	errCh  chan error
}

func (p *program) Start(service.Service) error {
	go func() {
		p.errCh <- app.Run(p.params)
	}()
	return nil
}

func (p *program) Stop(service.Service) error {
	return nil
}

func serviceConfig(cfgPath string) *service.Config {
	return &service.Config{
		Name:        "mcrelay",
		DisplayName: "mcrelay cache proxy",
		Description: "Cache-protocol routing proxy",
		Arguments:   []string{"service", "run", "--config", cfgPath},
	}
}

// serviceCmd manages mcrelay as a system service.
func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage mcrelay as a system service",
	}

	var cfgPath string
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "mcrelay.yaml", "Path to configuration file")

	newService := func() (service.Service, *program, error) {
		prg := &program{
			params: app.RunParams{
				ConfigPath: cfgPath,
				Version:    version,
				Commit:     commit,
				Date:       date,
				LogLevel:   slog.LevelInfo,
			},
			errCh: make(chan error, 1),
		}
		svc, err := service.New(prg, serviceConfig(cfgPath))
		return svc, prg, err
	}

	for _, action := range []string{"install", "uninstall", "start", "stop"} {
		action := action
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the system service", action),
			RunE: func(*cobra.Command, []string) error {
				svc, _, err := newService()
				if err != nil {
					return err
				}
				return service.Control(svc, action)
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run under the service manager (invoked by the manager itself)",
		RunE: func(*cobra.Command, []string) error {
			svc, prg, err := newService()
			if err != nil {
				return err
			}
			if err := svc.Run(); err != nil {
				return err
			}
			select {
			case err := <-prg.errCh:
				return err
			default:
				return nil
			}
		},
	})

	return cmd
}
