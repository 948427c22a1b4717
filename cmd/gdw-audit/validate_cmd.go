package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the registry and the settings its platforms need",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			if err := reg.CheckDependencies(a.cfg); err != nil {
				return err
			}

			if a.output == "json" {
				return a.printJSON(map[string]any{
					"valid":     true,
					"tables":    len(reg.Tables),
					"platforms": reg.Platforms(),
				})
			}
			fmt.Fprintf(a.stdout, "registry %s is valid: %d table(s) on %v\n", a.cfg.RegistryPath, len(reg.Tables), reg.Platforms())
			return nil
		},
	}
}
