package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

const configTemplate = `workers: %d
client_queue_size: 1024
proxy_max_inflight_requests: %d
proxy_max_throttled_requests: %d
waiting_request_timeout_ms: 100
max_no_flush_event_loops: 40
admin:
  addr: %q
`

// configInitCmd scaffolds a starter configuration file interactively.
func configInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [path]",
		Short: "Interactively create a starter configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := "mcrelay.yaml"
			if len(args) > 0 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", path)
			}

			workers := "4"
			maxInflight := "1024"
			maxThrottled := "4096"
			adminAddr := "127.0.0.1:5055"

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Worker count").
						Description("Number of independent proxy workers").
						Value(&workers).
						Validate(validatePositiveInt),
					huh.NewInput().
						Title("Max in-flight requests per worker").
						Description("0 disables admission rate-limiting").
						Value(&maxInflight).
						Validate(validateNonNegativeInt),
					huh.NewInput().
						Title("Max throttled requests per worker").
						Description("0 disables the waiting-queue cap").
						Value(&maxThrottled).
						Validate(validateNonNegativeInt),
					huh.NewInput().
						Title("Admin listen address").
						Description("Empty disables the admin server").
						Value(&adminAddr),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}

			w, _ := strconv.Atoi(workers)
			inflight, _ := strconv.Atoi(maxInflight)
			throttled, _ := strconv.Atoi(maxThrottled)

			content := fmt.Sprintf(configTemplate, w, inflight, throttled, adminAddr)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
}

func validatePositiveInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

func validateNonNegativeInt(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fmt.Errorf("must be a non-negative integer")
	}
	return nil
}
