package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-devicesim/internal/simulator"
)

func newProfilesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the available device profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROFILE\tTOPIC\tDEVICES\tFIELDS")
			for _, name := range simulator.ProfileNames(cfg) {
				p, err := simulator.LookupProfile(cfg, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", name, p.TopicTemplate, profileDevices(p), profileFields(p))
			}
			return tw.Flush()
		},
	}
}

func profileDevices(p simulator.Profile) string {
	if !p.FixedDevices() {
		return "numbered"
	}
	ids := make([]string, len(p.Devices))
	for i, d := range p.Devices {
		ids[i] = string(d.ID)
	}
	return strings.Join(ids, ",")
}

func profileFields(p simulator.Profile) string {
	var names []string
	seen := make(map[string]bool)
	add := func(fields []simulator.FieldSpec) {
		for _, f := range fields {
			if !seen[f.Name] {
				seen[f.Name] = true
				names = append(names, f.Name)
			}
		}
	}
	add(p.Fields)
	for _, d := range p.Devices {
		add(d.Fields)
	}
	return strings.Join(names, ",")
}
